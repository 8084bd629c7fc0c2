package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Metadata travels with every stored vector and comes back on query matches.
type Metadata struct {
	UserID       string  `json:"user_id"`
	CommitmentID string  `json:"commitment_id"`
	Description  string  `json:"description"`
	Amount       float64 `json:"amount"`
	Date         string  `json:"date"`
	Type         string  `json:"type"`
}

// Entry is one upsertable vector. The ID is derived deterministically from
// user id and commitment id, so re-upserting the same commitment overwrites
// rather than duplicates.
type Entry struct {
	ID       string
	Values   []float64
	Metadata Metadata
}

// Match is one ranked query result.
type Match struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Index is the semantic index adapter: idempotent upsert by id, user-scoped
// top-k similarity query, delete by id.
type Index interface {
	Upsert(ctx context.Context, entry Entry) error
	Query(ctx context.Context, vec []float64, userID string, topK int) ([]Match, error)
	Delete(ctx context.Context, id string) error
}

// EntryID derives the composite index key for a user's commitment.
func EntryID(userID, commitmentID string) string {
	return userID + "_" + commitmentID
}

// InMemoryIndex is a map-backed Index, safe for concurrent use. It serves
// local deployments and tests; production deployments point at Pinecone.
type InMemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewInMemoryIndex creates an empty in-memory index.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{
		entries: make(map[string]Entry),
	}
}

// Upsert implements the Index interface. Last write for an id wins.
func (x *InMemoryIndex) Upsert(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		return fmt.Errorf("upsert: entry id is required")
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	values := make([]float64, len(entry.Values))
	copy(values, entry.Values)
	entry.Values = values
	x.entries[entry.ID] = entry

	return nil
}

// Query implements the Index interface. Only entries belonging to userID are
// considered; results are ranked by cosine similarity, best first.
func (x *InMemoryIndex) Query(ctx context.Context, vec []float64, userID string, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	var matches []Match
	for _, entry := range x.entries {
		if entry.Metadata.UserID != userID {
			continue
		}
		matches = append(matches, Match{
			ID:       entry.ID,
			Score:    CosineSimilarity(vec, entry.Values),
			Metadata: entry.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete implements the Index interface. Deleting a missing id is a no-op.
func (x *InMemoryIndex) Delete(ctx context.Context, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	delete(x.entries, id)
	return nil
}

// Len reports how many entries the index currently holds.
func (x *InMemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

var _ Index = (*InMemoryIndex)(nil)
