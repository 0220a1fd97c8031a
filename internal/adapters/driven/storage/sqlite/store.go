package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/alazoor/Mimachat/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// dbFile is the database file name inside the data directory.
const dbFile = "mima.db"

// Store is a SQLite-backed VectorStore for one embedding dimension.
type Store struct {
	db         *sql.DB
	path       string
	dimensions int
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.mima/data/mima.db.
func NewStore(dataDir string, dimensions int) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrValidation, dimensions)
	}

	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".mima", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:         db,
		path:       dbPath,
		dimensions: dimensions,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Dimensions returns the embedding dimension this store serves.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) applyMigration(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// Put inserts doc under a new id, together with rec when it is non-nil.
// Both rows are written in one transaction.
func (s *Store) Put(ctx context.Context, doc domain.Document, rec *domain.EmbeddingRecord) (string, error) {
	if strings.TrimSpace(doc.TextContent) == "" {
		return "", fmt.Errorf("%w: document text is empty", domain.ErrValidation)
	}

	id := uuid.New().String()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	var embedding domain.EmbeddingRecord
	if rec != nil {
		embedding = *rec
		embedding.DocumentID = id
		if embedding.GeneratedAt.IsZero() {
			embedding.GeneratedAt = time.Now().UTC()
		}
		if err := embedding.Validate(s.dimensions); err != nil {
			return "", err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: beginning transaction: %w", domain.ErrPersistence, err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, text, source_locator, source_reference, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, doc.TextContent, doc.SourceLocator, doc.SourceReference, doc.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("%w: inserting document: %w", domain.ErrPersistence, err)
	}

	if rec != nil {
		if err := upsertEmbedding(ctx, tx, embedding); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: committing transaction: %w", domain.ErrPersistence, err)
	}
	return id, nil
}

// Get retrieves a document and its embedding by ID.
func (s *Store) Get(ctx context.Context, id string) (domain.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT d.id, d.text, d.source_locator, d.source_reference, d.created_at,
		       e.vector, e.dimensions, e.generated_at
		FROM documents d
		LEFT JOIN embeddings e ON e.document_id = d.id
		WHERE d.id = ?
	`, id)

	entry, err := s.scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Entry{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		return domain.Entry{}, err
	}
	return entry, nil
}

// ListAll streams every document in insertion order.
// The iterator holds a read connection until it is exhausted or stopped.
func (s *Store) ListAll(ctx context.Context) iter.Seq2[domain.Entry, error] {
	return func(yield func(domain.Entry, error) bool) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT d.id, d.text, d.source_locator, d.source_reference, d.created_at,
			       e.vector, e.dimensions, e.generated_at
			FROM documents d
			LEFT JOIN embeddings e ON e.document_id = d.id
			ORDER BY d.rowid
		`)
		if err != nil {
			yield(domain.Entry{}, fmt.Errorf("%w: querying documents: %w", domain.ErrPersistence, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			entry, err := s.scanEntry(rows)
			if !yield(entry, err) || err != nil {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(domain.Entry{}, fmt.Errorf("%w: iterating documents: %w", domain.ErrPersistence, err))
		}
	}
}

// ListPendingEmbeddings returns documents without a usable embedding, oldest first.
func (s *Store) ListPendingEmbeddings(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.text, d.source_locator, d.source_reference, d.created_at
		FROM documents d
		LEFT JOIN embeddings e ON e.document_id = d.id
		WHERE e.document_id IS NULL OR e.dimensions != ?
		ORDER BY d.rowid
	`, s.dimensions)
	if err != nil {
		return nil, fmt.Errorf("%w: querying pending documents: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(&doc.ID, &doc.TextContent, &doc.SourceLocator,
			&doc.SourceReference, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning document: %w", domain.ErrPersistence, err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating documents: %w", domain.ErrPersistence, err)
	}

	return docs, nil
}

// UpdateEmbedding replaces the embedding of an existing document.
func (s *Store) UpdateEmbedding(ctx context.Context, rec domain.EmbeddingRecord) error {
	if rec.GeneratedAt.IsZero() {
		rec.GeneratedAt = time.Now().UTC()
	}
	if err := rec.Validate(s.dimensions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", domain.ErrPersistence, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM documents WHERE id = ?", rec.DocumentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("document %s: %w", rec.DocumentID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: looking up document: %w", domain.ErrPersistence, err)
	}

	if err := upsertEmbedding(ctx, tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Delete removes a document; its embedding goes with it.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: deleting document: %w", domain.ErrPersistence, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: deleting document: %w", domain.ErrPersistence, err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Stats counts documents and usable embeddings.
func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	var stats domain.StoreStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM embeddings WHERE dimensions = ?)
	`, s.dimensions).Scan(&stats.Documents, &stats.Embedded)
	if err != nil {
		return domain.StoreStats{}, fmt.Errorf("%w: counting documents: %w", domain.ErrPersistence, err)
	}
	return stats, nil
}

// ==================== Helper Functions ====================

func upsertEmbedding(ctx context.Context, tx *sql.Tx, rec domain.EmbeddingRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO embeddings (document_id, vector, dimensions, generated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			vector = excluded.vector,
			dimensions = excluded.dimensions,
			generated_at = excluded.generated_at
	`, rec.DocumentID, float32SliceToBytes(rec.Vector), len(rec.Vector), rec.GeneratedAt)
	if err != nil {
		return fmt.Errorf("%w: saving embedding: %w", domain.ErrPersistence, err)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntry scans a document joined with its optional embedding.
// Embeddings of another dimension are dropped so the entry reads as pending.
func (s *Store) scanEntry(row scanner) (domain.Entry, error) {
	var (
		doc         domain.Document
		vector      []byte
		dimensions  sql.NullInt64
		generatedAt sql.NullTime
	)

	if err := row.Scan(&doc.ID, &doc.TextContent, &doc.SourceLocator, &doc.SourceReference,
		&doc.CreatedAt, &vector, &dimensions, &generatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Entry{}, err
		}
		return domain.Entry{}, fmt.Errorf("%w: scanning document: %w", domain.ErrPersistence, err)
	}

	entry := domain.Entry{Document: doc}
	if !dimensions.Valid || int(dimensions.Int64) != s.dimensions {
		return entry, nil
	}

	vec := bytesToFloat32Slice(vector)
	if len(vec) != s.dimensions {
		return domain.Entry{}, fmt.Errorf("%w: embedding for %s has %d bytes, want %d",
			domain.ErrPersistence, doc.ID, len(vector), s.dimensions*4)
	}

	entry.Embedding = &domain.EmbeddingRecord{
		DocumentID:  doc.ID,
		Vector:      vec,
		GeneratedAt: generatedAt.Time,
	}
	return entry, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
