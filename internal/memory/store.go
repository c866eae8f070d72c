package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	chromem "github.com/philippgille/chromem-go"
)

// Store keeps one chromem collection per tenant, named
// "reasoning-<tenantID>". The collection name is derived only from the
// authenticated tenant ID, never from caller-supplied query parameters,
// so a bug in a query can not reach another tenant's partition.
type Store struct {
	db       *chromem.DB
	embedder Embedder
}

// NewStore opens (or creates) the semantic store at path. An empty
// path keeps everything in memory, which is what the tests use.
func NewStore(path string, embedder Embedder) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	if path == "" {
		return &Store{db: chromem.NewDB(), embedder: embedder}, nil
	}

	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open semantic store: %w", err)
	}

	return &Store{db: db, embedder: embedder}, nil
}

// Match is one similar-rationale search result.
type Match struct {
	DecisionID string
	Text       string
	Similarity float32
}

func collectionName(tenantID string) string {
	return "reasoning-" + tenantID
}

func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.Embed(ctx, text)
	}
}

// Save stores one rationale record in the tenant's partition. This is
// the best-effort semantic write: callers log the returned error and
// move on, it must never gate the audit write.
func (s *Store) Save(ctx context.Context, tenantID, decisionID string, rationale any) error {
	text := CanonicalText(rationale)
	if text == "" {
		return fmt.Errorf("empty rationale for decision %s", decisionID)
	}

	collection, err := s.db.GetOrCreateCollection(collectionName(tenantID), nil, s.embeddingFunc())
	if err != nil {
		return fmt.Errorf("failed to open partition for tenant %s: %w", tenantID, err)
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed rationale: %w", err)
	}

	err = collection.AddDocument(ctx, chromem.Document{
		ID:        decisionID,
		Content:   text,
		Embedding: embedding,
		Metadata:  map[string]string{"decision_id": decisionID},
	})
	if err != nil {
		return fmt.Errorf("failed to store rationale: %w", err)
	}

	return nil
}

// Get looks up the rationale text for a decision within the tenant's
// partition. Absence (of the record or of the whole partition) is a
// normal outcome, not an error.
func (s *Store) Get(ctx context.Context, tenantID, decisionID string) (string, bool) {
	collection := s.db.GetCollection(collectionName(tenantID), s.embeddingFunc())
	if collection == nil {
		return "", false
	}

	doc, err := collection.GetByID(ctx, decisionID)
	if err != nil {
		return "", false
	}

	return doc.Content, true
}

// FindSimilar returns up to k rationale records from the tenant's
// partition nearest to the query text. Any failure degrades to an
// empty result; semantic lookup is never on the critical path.
func (s *Store) FindSimilar(ctx context.Context, tenantID, query string, k int) []Match {
	if k <= 0 {
		k = 5
	}

	collection := s.db.GetCollection(collectionName(tenantID), s.embeddingFunc())
	if collection == nil {
		return nil
	}

	// chromem rejects queries asking for more results than the
	// collection holds.
	if count := collection.Count(); count < k {
		k = count
	}
	if k == 0 {
		return nil
	}

	results, err := collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		slog.Debug("semantic query failed", "tenant", tenantID, "error", err)
		return nil
	}

	matches := make([]Match, 0, len(results))
	for _, result := range results {
		matches = append(matches, Match{
			DecisionID: result.ID,
			Text:       result.Content,
			Similarity: result.Similarity,
		})
	}

	return matches
}

// CanonicalText renders a rationale value to the canonical string form
// used for embedding. Strings pass through; anything else becomes
// deterministic JSON.
func CanonicalText(rationale any) string {
	switch v := rationale.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
