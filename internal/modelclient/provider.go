// Package modelclient defines the contract the offline pipeline uses to
// talk to an external captioning/advice-writing model. No concrete vendor
// is implemented here — the real backend (whatever LLM or VLM a deployment
// wires in) sits behind this interface, following the same single-Provider-
// interface shape pkg/llm/provider.go uses instead of a class hierarchy
// per vendor.
package modelclient

import (
	"context"
	"errors"
	"time"
)

// Message is one turn of a chat-style completion request.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest is everything a Provider needs to produce a single
// text completion. Streaming is not part of the contract: the offline
// pipeline always wants one finished response per call.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// CompletionResult is the model's answer plus bookkeeping about the call.
type CompletionResult struct {
	Text       string
	ModelName  string
	Latency    time.Duration
	Confidence float64 // self-reported or heuristically derived, 0 if unknown
}

// Provider is the single interface every external model integration
// implements. ErrUnavailable marks a transient provider failure. The retry
// executor does not tell error kinds apart: it retries every error except
// context cancellation and deadline expiry, so other provider errors are
// retried as well.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// ErrUnavailable indicates the provider could not be reached or returned
// a retryable server error (429/5xx equivalent).
var ErrUnavailable = errors.New("modelclient: provider unavailable")

// StubProvider is a deterministic, dependency-free Provider used in tests.
// It never calls out to the network.
type StubProvider struct {
	// Response is returned verbatim for every call.
	Response string
}

func (s StubProvider) Complete(_ context.Context, _ CompletionRequest) (CompletionResult, error) {
	text := s.Response
	if text == "" {
		text = "保持稳定，继续当前运镜"
	}
	return CompletionResult{Text: text, ModelName: "stub", Confidence: 0.5}, nil
}
