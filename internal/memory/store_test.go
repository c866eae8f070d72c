package memory

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordEmbedder is a deterministic test embedder: it hashes words into a
// small vector so that texts sharing words land near each other.
func wordEmbedder() Embedder {
	return EmbedderFunc(func(_ context.Context, text string) ([]float32, error) {
		const dim = 16
		vec := make([]float32, dim)
		vec[0] = 0.1 // bias so no vector is all zeros
		for _, word := range strings.Fields(strings.ToLower(text)) {
			var h uint32
			for _, r := range word {
				h = h*31 + uint32(r)
			}
			vec[h%dim]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
		return vec, nil
	})
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore("", wordEmbedder())
	require.NoError(t, err)
	return store
}

func TestStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Save(ctx, "tenant-a", "d1", "Recurring payment to a cloud hosting provider.")
	require.NoError(t, err)

	text, ok := store.Get(ctx, "tenant-a", "d1")
	require.True(t, ok)
	assert.Contains(t, text, "cloud hosting")

	_, ok = store.Get(ctx, "tenant-a", "d2")
	assert.False(t, ok, "unknown decision should be a clean miss")

	_, ok = store.Get(ctx, "tenant-b", "d1")
	assert.False(t, ok, "another tenant's partition must not resolve the ID")
}

func TestStore_SaveRejectsEmptyRationale(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Save(context.Background(), "tenant-a", "d1", ""))
	assert.Error(t, store.Save(context.Background(), "tenant-a", "d1", nil))
}

func TestStore_StructuredRationale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rationale := map[string]string{"step": "matched vendor", "vendor": "acme"}
	require.NoError(t, store.Save(ctx, "tenant-a", "d1", rationale))

	text, ok := store.Get(ctx, "tenant-a", "d1")
	require.True(t, ok)
	assert.Contains(t, text, `"vendor":"acme"`)
}

func TestStore_FindSimilar(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tenant-a", "d1", "monthly software subscription for accounting tools"))
	require.NoError(t, store.Save(ctx, "tenant-a", "d2", "fuel purchase at highway gas station"))
	require.NoError(t, store.Save(ctx, "tenant-a", "d3", "annual software license renewal"))

	matches := store.FindSimilar(ctx, "tenant-a", "software subscription license", 2)
	require.Len(t, matches, 2)

	ids := []string{matches[0].DecisionID, matches[1].DecisionID}
	assert.Contains(t, ids, "d1")
	assert.Contains(t, ids, "d3")
	assert.Greater(t, matches[0].Similarity, float32(0))
}

func TestStore_FindSimilar_ClampsK(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tenant-a", "d1", "office chair purchase"))

	// Asking for more results than stored must not error out.
	matches := store.FindSimilar(ctx, "tenant-a", "office furniture", 5)
	assert.Len(t, matches, 1)
}

func TestStore_FindSimilar_TenantIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Textually identical rationale under two tenants.
	const rationale = "wire transfer to overseas supplier for raw materials"
	require.NoError(t, store.Save(ctx, "tenant-a", "a-1", rationale))
	require.NoError(t, store.Save(ctx, "tenant-b", "b-1", rationale))

	matches := store.FindSimilar(ctx, "tenant-a", "overseas supplier payment", 10)
	require.Len(t, matches, 1)
	assert.Equal(t, "a-1", matches[0].DecisionID)

	// A tenant with no partition gets an empty result, not an error.
	assert.Empty(t, store.FindSimilar(ctx, "tenant-c", "anything", 5))
}

func TestStore_EmbeddingFailureIsContained(t *testing.T) {
	failing := EmbedderFunc(func(context.Context, string) ([]float32, error) {
		return nil, errors.New("model unavailable")
	})
	store, err := NewStore("", failing)
	require.NoError(t, err)

	err = store.Save(context.Background(), "tenant-a", "d1", "some rationale")
	assert.Error(t, err, "save surfaces the failure so the caller can log it")

	// Reads degrade quietly.
	assert.Empty(t, store.FindSimilar(context.Background(), "tenant-a", "query", 5))
}

func TestCanonicalText(t *testing.T) {
	assert.Equal(t, "plain", CanonicalText("plain"))
	assert.Equal(t, "", CanonicalText(nil))
	assert.JSONEq(t, `{"a":1}`, CanonicalText(map[string]int{"a": 1}))
}
