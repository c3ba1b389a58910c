package embedding

import (
	"context"
	"hash/fnv"
)

// MockClient is a deterministic embedding client for testing and offline
// use. Set Vectors to pin exact responses per input text; unpinned inputs
// get a stable hash-derived vector so equal texts embed identically.
type MockClient struct {
	Vectors map[string][]float32
	Err     error
	Dim     int

	// Call tracking for assertions
	EmbedCalls []string
}

func NewMockClient() *MockClient {
	return &MockClient{
		Vectors: make(map[string][]float32),
		Dim:     8,
	}
}

func (c *MockClient) Embed(_ context.Context, text string) ([]float32, error) {
	c.EmbedCalls = append(c.EmbedCalls, text)
	if c.Err != nil {
		return nil, c.Err
	}
	if v, ok := c.Vectors[text]; ok {
		return v, nil
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, c.Dim)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>33)%1000)/1000.0 - 0.5
	}
	return vec, nil
}
