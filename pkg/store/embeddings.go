package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/flowgrid/flowgrid/pkg/domain"
)

// InsertEmbeddings stores embedded documents into a collection.
func (s *Store) InsertEmbeddings(ctx context.Context, docs []domain.EmbeddingDocument) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		if len(doc.Vector) == 0 {
			return fmt.Errorf("document %s has no vector", doc.ID)
		}
		vector, err := json.Marshal(doc.Vector)
		if err != nil {
			return fmt.Errorf("failed to marshal vector: %w", err)
		}
		var metadata sql.NullString
		if doc.Metadata != nil {
			data, err := json.Marshal(doc.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal metadata: %w", err)
			}
			metadata = sql.NullString{String: string(data), Valid: true}
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now()
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO embeddings (id, user_id, collection, content, metadata, vector, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				content = excluded.content,
				metadata = excluded.metadata,
				vector = excluded.vector
		`, doc.ID, doc.UserID, doc.Collection, doc.Content, metadata, string(vector), doc.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert embedding: %w", err)
		}
	}
	return tx.Commit()
}

// SearchEmbeddings ranks a collection's documents by cosine similarity to
// the query vector and returns up to limit matches at or above threshold.
func (s *Store) SearchEmbeddings(ctx context.Context, userID, collection string, query []float64, limit int, threshold float64) ([]domain.EmbeddingMatch, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, metadata, vector FROM embeddings
		WHERE user_id = ? AND collection = ?
	`, userID, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to search embeddings: %w", err)
	}
	defer rows.Close()

	var matches []domain.EmbeddingMatch
	for rows.Next() {
		var id, content, vectorJSON string
		var metadata sql.NullString
		if err := rows.Scan(&id, &content, &metadata, &vectorJSON); err != nil {
			return nil, err
		}

		var vector []float64
		if err := json.Unmarshal([]byte(vectorJSON), &vector); err != nil {
			return nil, fmt.Errorf("failed to decode vector for %s: %w", id, err)
		}

		similarity := cosineSimilarity(query, vector)
		if similarity < threshold {
			continue
		}

		match := domain.EmbeddingMatch{ID: id, Content: content, Similarity: similarity}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &match.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
			}
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// DeleteCollection removes every document of one collection.
func (s *Store) DeleteCollection(ctx context.Context, userID, collection string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM embeddings WHERE user_id = ? AND collection = ?`, userID, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to delete collection: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
