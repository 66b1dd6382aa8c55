// Package embedder turns documents into stored vectors and answers
// similarity queries over them.
package embedder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/flowgrid/flowgrid/pkg/domain"
	"github.com/flowgrid/flowgrid/pkg/log"
	"github.com/flowgrid/flowgrid/pkg/workflow"
)

// Repository is the vector persistence contract, implemented by store.Store.
type Repository interface {
	InsertEmbeddings(ctx context.Context, docs []domain.EmbeddingDocument) error
	SearchEmbeddings(ctx context.Context, userID, collection string, query []float64, limit int, threshold float64) ([]domain.EmbeddingMatch, error)
}

// maxConcurrentEmbeds bounds parallel embedding calls per batch.
const maxConcurrentEmbeds = 4

// Service embeds documents through a model provider and persists them.
type Service struct {
	embedder domain.Embedder
	repo     Repository
	logger   *slog.Logger
}

// New creates an embedding service.
func New(embedder domain.Embedder, repo Repository) *Service {
	return &Service{
		embedder: embedder,
		repo:     repo,
		logger:   log.WithModule("embedder"),
	}
}

// CreateCollection embeds every document and stores it in the collection.
// Documents are embedded concurrently; one failed embedding fails the whole
// batch and nothing is stored.
func (s *Service) CreateCollection(ctx context.Context, userID, collection string, inputs []workflow.EmbedInput) (int, error) {
	if len(inputs) == 0 {
		return 0, fmt.Errorf("%w: no documents to embed", domain.ErrInvalidInput)
	}

	docs := make([]domain.EmbeddingDocument, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentEmbeds)

	for i, input := range inputs {
		g.Go(func() error {
			if input.Content == "" {
				return fmt.Errorf("%w: document %d has empty content", domain.ErrInvalidInput, i)
			}
			vector, err := s.embedder.Embed(gctx, input.Content)
			if err != nil {
				return fmt.Errorf("%w: document %d: %v", domain.ErrEmbeddingFailed, i, err)
			}
			docs[i] = domain.EmbeddingDocument{
				ID:         uuid.New().String(),
				UserID:     userID,
				Collection: collection,
				Content:    input.Content,
				Metadata:   input.Metadata,
				Vector:     vector,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := s.repo.InsertEmbeddings(ctx, docs); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreFailed, err)
	}
	s.logger.Info("collection updated", "collection", collection, "documents", len(docs))
	return len(docs), nil
}

// Search embeds the query text and returns the closest stored documents.
func (s *Service) Search(ctx context.Context, userID, collection, query string, limit int, threshold float64) ([]domain.EmbeddingMatch, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", domain.ErrEmbeddingFailed, err)
	}
	return s.repo.SearchEmbeddings(ctx, userID, collection, vector, limit, threshold)
}
