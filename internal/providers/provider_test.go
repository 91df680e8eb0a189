package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/worker"
)

type stubAdapter struct {
	Descriptor
	calls int
}

func (s *stubAdapter) Query(ctx context.Context, sub model.SubClaim, maxResults int) ([]model.EvidenceItem, error) {
	s.calls++
	return []model.EvidenceItem{{ProviderID: s.Name, Content: sub.Text}}, nil
}

func newStub(id string, general bool) *stubAdapter {
	return &stubAdapter{Descriptor: Descriptor{Name: id, Kind: model.CategorySearch, Fallback: general}}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(newStub("wikipedia", true), newStub("anthropic", false), newStub("openai", true))

	require.Equal(t, 3, r.Len())

	var ids []string
	for _, a := range r.All() {
		ids = append(ids, a.ID())
	}
	assert.Equal(t, []string{"anthropic", "openai", "wikipedia"}, ids)

	var fallbacks []string
	for _, a := range r.Fallbacks() {
		fallbacks = append(fallbacks, a.ID())
	}
	assert.Equal(t, []string{"openai", "wikipedia"}, fallbacks)

	_, ok := r.Get("anthropic")
	assert.True(t, ok)
	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_ReplaceSameID(t *testing.T) {
	r := NewRegistry(newStub("openai", false))
	r.Register(newStub("openai", true))

	require.Equal(t, 1, r.Len())
	a, _ := r.Get("openai")
	assert.True(t, a.General())
}

func TestRegistry_NilLen(t *testing.T) {
	var r *Registry
	assert.Equal(t, 0, r.Len())
}

func TestClassify(t *testing.T) {
	syntaxErr := json.Unmarshal([]byte("{"), &struct{}{})

	tests := []struct {
		desc string
		err  error
		kind ErrorKind
	}{
		{desc: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), kind: KindTimeout},
		{desc: "cancelled", err: context.Canceled, kind: KindTimeout},
		{desc: "unauthorized status", err: &StatusError{Code: http.StatusUnauthorized}, kind: KindAuthFailure},
		{desc: "forbidden status", err: &StatusError{Code: http.StatusForbidden}, kind: KindAuthFailure},
		{desc: "too many requests", err: &StatusError{Code: http.StatusTooManyRequests}, kind: KindRateLimited},
		{desc: "gateway timeout", err: &StatusError{Code: http.StatusGatewayTimeout}, kind: KindTimeout},
		{desc: "server error", err: &StatusError{Code: http.StatusBadGateway}, kind: KindUnavailable},
		{desc: "bad json", err: fmt.Errorf("decode: %w", syntaxErr), kind: KindMalformedResponse},
		{desc: "other", err: errors.New("connection refused"), kind: KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			pe := Classify("p", tt.err)
			require.NotNil(t, pe)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, "p", pe.Provider)
			assert.ErrorIs(t, pe, tt.err)
		})
	}

	assert.Nil(t, Classify("p", nil))

	existing := NewError("q", KindAuthFailure, errors.New("x"))
	assert.Same(t, existing, Classify("p", existing))
}

func TestProviderError_Message(t *testing.T) {
	err := NewError("openai", KindTimeout, context.DeadlineExceeded)
	assert.Equal(t, "provider openai: timeout: context deadline exceeded", err.Error())
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestWithRateLimit(t *testing.T) {
	stub := newStub("slow", false)
	limiter := worker.NewLimiter(0.01, 1)
	adapter := WithRateLimit(stub, limiter)

	assert.Equal(t, "slow", adapter.ID())

	_, err := adapter.Query(context.Background(), model.SubClaim{Text: "first"}, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = adapter.Query(ctx, model.SubClaim{Text: "second"}, 1)
	assert.Equal(t, KindRateLimited, KindOf(err))
	assert.Equal(t, 1, stub.calls)

	assert.Same(t, Adapter(stub), WithRateLimit(stub, nil))
}

func TestBuild(t *testing.T) {
	t.Setenv("VERACITY_TEST_OPENAI_KEY", "sk-test")

	cfg := model.DefaultConfig()
	cfg.Providers = []model.ProviderConfig{
		{ID: "wikipedia", Kind: "wikipedia", Enabled: true, General: true},
		{ID: "openai", Kind: "openai", Enabled: true, APIKeyEnv: "VERACITY_TEST_OPENAI_KEY", Specializations: []string{"scientific", "bogus"}},
		{ID: "anthropic", Kind: "anthropic", Enabled: true, APIKeyEnv: "VERACITY_TEST_MISSING_KEY"},
		{ID: "ollama", Kind: "ollama", Enabled: false},
	}

	registry, err := Build(context.Background(), cfg, Dependencies{})
	require.NoError(t, err)
	require.Equal(t, 2, registry.Len())

	openai, ok := registry.Get("openai")
	require.True(t, ok)
	assert.Equal(t, []model.ClaimType{model.ClaimTypeScientific}, openai.Specializations())
	assert.Equal(t, model.CategoryAIModel, openai.Category())

	_, ok = registry.Get("anthropic")
	assert.False(t, ok, "provider without credentials must be skipped")
}

func TestBuild_UnknownKind(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Providers = []model.ProviderConfig{{ID: "x", Kind: "carrier-pigeon", Enabled: true}}

	_, err := Build(context.Background(), cfg, Dependencies{})
	var cfgErr *model.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
