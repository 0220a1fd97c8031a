package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alazoor/Mimachat/internal/core/domain"
)

// defaultMinSimilarity is the search threshold when --min-similarity is unset.
const defaultMinSimilarity = 0.5

var (
	searchLimit         int
	searchMinSimilarity float64
	searchJSON          bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored text",
	Long: `Ranks stored documents by cosine similarity to the query.

Only documents at or above --min-similarity are returned. A limit of 0
uses the configured search.limit.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from stored text",
	Long: `Answers a question with the most similar stored texts and names the
primary source. Uses search.answer_limit and search.min_similarity.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (0 = configured)")
	searchCmd.Flags().Float64VarP(&searchMinSimilarity, "min-similarity", "m", defaultMinSimilarity,
		"minimum cosine similarity in [-1, 1]")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(askCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	awaitModel(cmd)
	resp, err := searchService.Search(commandContext(cmd), args[0], searchLimit, searchMinSimilarity)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, resp)
	}

	return outputSearchTable(cmd, resp)
}

func outputSearchJSON(cmd *cobra.Command, resp domain.SearchResponse) error {
	if resp.Results == nil {
		resp.Results = []domain.SearchResult{}
	}
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, resp domain.SearchResponse) error {
	if len(resp.Results) == 0 {
		cmd.Printf("No results: %s\n", resp.Reason.Description())
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range resp.Results {
		r := &resp.Results[i]
		label := r.SourceReference
		if label == "" {
			label = r.DocumentID
		}

		cmd.Printf("  [%d] %s (%.3f)\n", r.Rank, label, r.Similarity)
		if r.SourceLocator != "" {
			cmd.Printf("      Source: %s\n", r.SourceLocator)
		}
		cmd.Printf("      %s\n", snippet(r.TextContent, 120))
		cmd.Println()
	}

	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	awaitModel(cmd)
	answer, err := searchService.Ask(commandContext(cmd), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	cmd.Println(answer.Text)
	if answer.PrimaryLocator != "" {
		cmd.Printf("\n%s\n", answer.PrimaryLocator)
	}
	return nil
}

// snippet flattens whitespace and cuts text to at most n runes.
func snippet(text string, n int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= n {
		return flat
	}
	return string(runes[:n-3]) + "..."
}
