package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PineconeIndex talks to a Pinecone serverless index over its REST API.
type PineconeIndex struct {
	host   string
	apiKey string
	client *http.Client
}

// NewPineconeIndex creates a client for the index served at host
// (e.g. "https://financial-commitments-xxxx.svc.pinecone.io").
func NewPineconeIndex(host, apiKey string) (*PineconeIndex, error) {
	if host == "" {
		return nil, fmt.Errorf("pinecone host is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("pinecone api key is required")
	}

	return &PineconeIndex{
		host:   host,
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type pineconeVector struct {
	ID       string    `json:"id"`
	Values   []float64 `json:"values"`
	Metadata Metadata  `json:"metadata"`
}

type upsertRequest struct {
	Vectors []pineconeVector `json:"vectors"`
}

type queryRequest struct {
	Vector          []float64              `json:"vector"`
	TopK            int                    `json:"topK"`
	Filter          map[string]interface{} `json:"filter,omitempty"`
	IncludeMetadata bool                   `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []Match `json:"matches"`
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}

// Upsert implements the Index interface.
func (p *PineconeIndex) Upsert(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		return fmt.Errorf("upsert: entry id is required")
	}

	req := upsertRequest{
		Vectors: []pineconeVector{{
			ID:       entry.ID,
			Values:   entry.Values,
			Metadata: entry.Metadata,
		}},
	}

	return p.post(ctx, "/vectors/upsert", req, nil)
}

// Query implements the Index interface. The user scope is applied as a
// metadata filter so one user's vectors never surface for another.
func (p *PineconeIndex) Query(ctx context.Context, vec []float64, userID string, topK int) ([]Match, error) {
	req := queryRequest{
		Vector:          vec,
		TopK:            topK,
		IncludeMetadata: true,
		Filter: map[string]interface{}{
			"user_id": map[string]interface{}{"$eq": userID},
		},
	}

	var resp queryResponse
	if err := p.post(ctx, "/query", req, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// Delete implements the Index interface.
func (p *PineconeIndex) Delete(ctx context.Context, id string) error {
	return p.post(ctx, "/vectors/delete", deleteRequest{IDs: []string{id}}, nil)
}

func (p *PineconeIndex) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pinecone error (status %d): %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

var _ Index = (*PineconeIndex)(nil)
