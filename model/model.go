// Package model defines the boundary to the prediction and summarization
// collaborators. The core never sees model internals: a Predictor consumes a
// fixed-length numeric feature vector and returns a scalar or probability
// prediction with an optional confidence; a Summarizer compresses free text.
// Loading failures of a specific model surface as agent-unavailable for only
// the capability that depends on it, never as a global failure.
package model

import (
	"context"
	"fmt"
	"sync"
)

// Prediction is the output of one Predictor call. Confidence is in [0,1];
// HasConfidence distinguishes "confidence zero" from "no confidence
// reported".
type Prediction struct {
	Value         float64 `json:"value"`
	Confidence    float64 `json:"confidence,omitempty"`
	HasConfidence bool    `json:"has_confidence"`
	ModelID       string  `json:"model_id"`
}

// Predictor is the prediction-collaborator contract.
type Predictor interface {
	// Predict consumes a fixed-length feature vector. Implementations must
	// reject vectors of the wrong length.
	Predict(ctx context.Context, modelID string, features []float64) (*Prediction, error)
}

// Summarizer compresses free text into a digest. Conversation memory uses it
// for session digests when configured; a nil Summarizer falls back to
// heuristic compression.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// MockPredictor is a deterministic in-memory Predictor for tests and local
// development. Each registered model declares its expected feature length.
type MockPredictor struct {
	mu     sync.RWMutex
	models map[string]mockModel
	calls  int
}

type mockModel struct {
	featureLen int
	fn         func(features []float64) (float64, float64)
}

// NewMockPredictor creates an empty MockPredictor.
func NewMockPredictor() *MockPredictor {
	return &MockPredictor{models: make(map[string]mockModel)}
}

// AddModel registers a model computing value and confidence from features.
func (m *MockPredictor) AddModel(modelID string, featureLen int, fn func(features []float64) (value, confidence float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models[modelID] = mockModel{featureLen: featureLen, fn: fn}
}

// Predict implements Predictor.
func (m *MockPredictor) Predict(ctx context.Context, modelID string, features []float64) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	mm, ok := m.models[modelID]
	m.calls++
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("model %q not loaded", modelID)
	}
	if len(features) != mm.featureLen {
		return nil, fmt.Errorf("model %q expects %d features, got %d", modelID, mm.featureLen, len(features))
	}
	value, confidence := mm.fn(features)
	return &Prediction{Value: value, Confidence: confidence, HasConfidence: true, ModelID: modelID}, nil
}

// Calls returns how many Predict invocations were made. Useful for spy-style
// assertions that a denied request never reached a model.
func (m *MockPredictor) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// MockSummarizer returns canned digests keyed by input, or an echo digest
// when no canned response matches.
type MockSummarizer struct {
	mu        sync.Mutex
	responses map[string]string
	calls     int
}

// NewMockSummarizer creates an empty MockSummarizer.
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{responses: make(map[string]string)}
}

// AddResponse registers a canned digest for an exact input.
func (m *MockSummarizer) AddResponse(input, digest string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[input] = digest
}

// Summarize implements Summarizer.
func (m *MockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if resp, ok := m.responses[text]; ok {
		return resp, nil
	}
	return "summary: " + text, nil
}
