package embedder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/domain"
	"github.com/flowgrid/flowgrid/pkg/workflow"
)

type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if text == f.failOn {
		return nil, errors.New("model unavailable")
	}
	return []float64{float64(len(text)), 1, 0}, nil
}

type fakeRepo struct {
	inserted []domain.EmbeddingDocument
	matches  []domain.EmbeddingMatch
}

func (r *fakeRepo) InsertEmbeddings(_ context.Context, docs []domain.EmbeddingDocument) error {
	r.inserted = append(r.inserted, docs...)
	return nil
}

func (r *fakeRepo) SearchEmbeddings(_ context.Context, _, _ string, _ []float64, _ int, _ float64) ([]domain.EmbeddingMatch, error) {
	return r.matches, nil
}

func TestCreateCollection(t *testing.T) {
	emb := &fakeEmbedder{}
	repo := &fakeRepo{}
	svc := New(emb, repo)

	n, err := svc.CreateCollection(context.Background(), "u1", "docs", []workflow.EmbedInput{
		{Content: "first document"},
		{Content: "second", Metadata: map[string]any{"lang": "en"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, repo.inserted, 2)

	// Order is preserved even though embedding runs concurrently.
	assert.Equal(t, "first document", repo.inserted[0].Content)
	assert.Equal(t, "second", repo.inserted[1].Content)
	assert.Equal(t, "docs", repo.inserted[0].Collection)
	assert.NotEmpty(t, repo.inserted[0].ID)
	assert.NotEmpty(t, repo.inserted[0].Vector)
	assert.Equal(t, "en", repo.inserted[1].Metadata["lang"])
}

func TestCreateCollectionFailsAtomically(t *testing.T) {
	emb := &fakeEmbedder{failOn: "bad"}
	repo := &fakeRepo{}
	svc := New(emb, repo)

	_, err := svc.CreateCollection(context.Background(), "u1", "docs", []workflow.EmbedInput{
		{Content: "good"},
		{Content: "bad"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
	assert.Empty(t, repo.inserted)
}

func TestCreateCollectionRejectsEmpty(t *testing.T) {
	svc := New(&fakeEmbedder{}, &fakeRepo{})

	_, err := svc.CreateCollection(context.Background(), "u1", "docs", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CreateCollection(context.Background(), "u1", "docs", []workflow.EmbedInput{{Content: ""}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearch(t *testing.T) {
	repo := &fakeRepo{matches: []domain.EmbeddingMatch{{ID: "d1", Similarity: 0.93}}}
	svc := New(&fakeEmbedder{}, repo)

	matches, err := svc.Search(context.Background(), "u1", "docs", "query text", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "d1", matches[0].ID)

	_, err = svc.Search(context.Background(), "u1", "docs", "", 5, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
