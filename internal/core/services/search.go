package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
	"github.com/alazoor/Mimachat/internal/core/ports/driving"
	"github.com/alazoor/Mimachat/internal/index"
	"github.com/alazoor/Mimachat/internal/logger"
	"github.com/alazoor/Mimachat/internal/normalisers/arabic"
	"github.com/alazoor/Mimachat/internal/retrieval"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

var searchLog = logger.For("search")

// SearchService answers similarity queries against the current index snapshot.
type SearchService struct {
	normaliser driven.Normaliser
	provider   driven.EmbeddingProvider
	index      *index.Index
	settings   domain.SearchSettings
}

// NewSearchService creates a new search service.
func NewSearchService(
	normaliser driven.Normaliser,
	provider driven.EmbeddingProvider,
	ix *index.Index,
	settings domain.SearchSettings,
) *SearchService {
	return &SearchService{
		normaliser: normaliser,
		provider:   provider,
		index:      ix,
		settings:   settings,
	}
}

// Search returns up to k documents whose similarity to queryText is at
// least minSimilarity. A k of zero uses the configured limit.
func (s *SearchService) Search(
	ctx context.Context,
	queryText string,
	k int,
	minSimilarity float64,
) (domain.SearchResponse, error) {
	if k == 0 {
		k = s.settings.Limit
	}
	if k <= 0 {
		return domain.SearchResponse{}, fmt.Errorf("%w: k must be positive, got %d", domain.ErrValidation, k)
	}
	if math.IsNaN(minSimilarity) || minSimilarity < -1 || minSimilarity > 1 {
		return domain.SearchResponse{}, fmt.Errorf("%w: similarity threshold %v outside [-1, 1]",
			domain.ErrValidation, minSimilarity)
	}

	// Pin one snapshot for the whole query.
	snap := s.index.Snapshot()
	resp := domain.SearchResponse{SnapshotVersion: snap.Version()}

	// Length is measured after diacritics and tatweel are folded away.
	query := strings.TrimSpace(queryText)
	folded := strings.TrimSpace(arabic.Normalize(query))
	if folded == "" || utf8.RuneCountInString(folded) < s.settings.MinQueryRunes {
		resp.Reason = domain.ReasonQueryTooShort
		return resp, nil
	}

	if s.provider.State() != domain.ModelReady {
		resp.Reason = domain.ReasonModelNotReady
		return resp, nil
	}

	seq, err := s.normaliser.Normalise(query)
	if err != nil {
		return resp, fmt.Errorf("normalising query: %w", err)
	}

	vec, err := s.provider.Embed(ctx, seq)
	if err != nil {
		if errors.Is(err, domain.ErrModelNotReady) {
			resp.Reason = domain.ReasonModelNotReady
			return resp, nil
		}
		return resp, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := retrieval.Search(ctx, snap, vec, k, minSimilarity)
	if err != nil {
		return resp, err
	}

	if len(hits) == 0 {
		resp.Reason = domain.ReasonNoMatches
		return resp, nil
	}

	resp.Reason = domain.ReasonOK
	resp.Results = make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		doc := h.Entry.Document
		resp.Results[i] = domain.SearchResult{
			DocumentID:      doc.ID,
			TextContent:     doc.TextContent,
			SourceReference: doc.SourceReference,
			SourceLocator:   doc.SourceLocator,
			Similarity:      h.Similarity,
			Rank:            h.Rank,
		}
	}

	searchLog.Debug("query matched %d of %d (snapshot %d)", len(hits), snap.Len(), snap.Version())
	return resp, nil
}

// Ask runs a question through Search with the answer settings and formats
// the reply.
func (s *SearchService) Ask(ctx context.Context, question string) (domain.Answer, error) {
	limit := s.settings.AnswerLimit
	if limit <= 0 {
		limit = s.settings.Limit
	}

	resp, err := s.Search(ctx, question, limit, s.settings.MinSimilarity)
	if err != nil {
		return domain.Answer{}, err
	}
	return FormatAnswer(resp), nil
}
