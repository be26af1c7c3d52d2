package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

var ErrCollectionNotFound = errors.New("collection not found")

// Point is one embedded sentence.
type Point struct {
	ID          uuid.UUID
	Content     string
	ContentHash string
	Metadata    map[string]any
	Embedding   []float32
}

type Hit struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

type Collection struct {
	Name        string `json:"name"`
	Dimensions  int    `json:"dimensions"`
	PointsCount int64  `json:"points_count"`
}

// Store keeps named collections of points in Postgres with pgvector.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureCollection creates the collection if needed. An existing collection
// with a different dimension count is an error.
func (s *Store) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vector_collections (name, dimensions)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, name, dimensions)
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	var existing int
	if err := s.pool.QueryRow(ctx, `SELECT dimensions FROM vector_collections WHERE name = $1`, name).Scan(&existing); err != nil {
		return fmt.Errorf("reading collection %s: %w", name, err)
	}
	if existing != dimensions {
		return fmt.Errorf("collection %s has %d dimensions, embeddings have %d", name, existing, dimensions)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, p := range points {
		metadata := p.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		batch.Queue(`
			INSERT INTO vector_points (collection, id, content, content_hash, metadata, embedding)
			VALUES ($1, $2::uuid, $3, $4, $5, $6)
			ON CONFLICT (collection, id) DO UPDATE SET
				content = EXCLUDED.content,
				content_hash = EXCLUDED.content_hash,
				metadata = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding,
				updated_at = now()
		`, collection, p.ID.String(), p.Content, p.ContentHash, metadata, pgvector.NewVector(p.Embedding))
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close() //nolint:errcheck
			return fmt.Errorf("batch exec %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	return tx.Commit(ctx)
}

// Hashes returns the stored content hash for each of ids that exists.
func (s *Store) Hashes(ctx context.Context, collection string, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, content_hash
		FROM vector_points
		WHERE collection = $1 AND id = ANY($2::uuid[])
	`, collection, strIDs)
	if err != nil {
		return nil, fmt.Errorf("reading content hashes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("scanning content hash: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parsing point id %q: %w", id, err)
		}
		out[parsed] = hash
	}
	return out, rows.Err()
}

// DeleteStale removes the points of one article whose ids are not in keep,
// such as sentences that disappeared when the article was processed again.
func (s *Store) DeleteStale(ctx context.Context, collection, pdfFilename string, keep []uuid.UUID) (int64, error) {
	strIDs := make([]string, len(keep))
	for i, id := range keep {
		strIDs[i] = id.String()
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM vector_points
		WHERE collection = $1
			AND metadata->>'pdf_filename' = $2
			AND NOT (id = ANY($3::uuid[]))
	`, collection, pdfFilename, strIDs)
	if err != nil {
		return 0, fmt.Errorf("deleting stale points of %s: %w", pdfFilename, err)
	}
	return tag.RowsAffected(), nil
}

// Search returns the k points closest to vector by cosine distance.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, k int) ([]Hit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, content, metadata, 1 - (embedding <=> $2) AS score
		FROM vector_points
		WHERE collection = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`, collection, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", collection, err)
	}

	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Hit, error) {
		var h Hit
		err := row.Scan(&h.ID, &h.Content, &h.Metadata, &h.Score)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning search hits: %w", err)
	}
	return hits, nil
}

// Count returns ErrCollectionNotFound when the collection was never created.
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vector_collections WHERE name = $1)`, collection).Scan(&exists); err != nil {
		return 0, fmt.Errorf("checking collection %s: %w", collection, err)
	}
	if !exists {
		return 0, ErrCollectionNotFound
	}

	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM vector_points WHERE collection = $1`, collection).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting points in %s: %w", collection, err)
	}
	return count, nil
}

func (s *Store) Collections(ctx context.Context) ([]Collection, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.name, c.dimensions, count(p.id)
		FROM vector_collections c
		LEFT JOIN vector_points p ON p.collection = c.name
		GROUP BY c.name, c.dimensions
		ORDER BY c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	collections, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Collection, error) {
		var c Collection
		err := row.Scan(&c.Name, &c.Dimensions, &c.PointsCount)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning collections: %w", err)
	}
	return collections, nil
}
