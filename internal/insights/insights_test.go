package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notesight/internal/apperr"
	"github.com/starford/notesight/internal/models"
)

type stubLLM struct {
	reply  string
	err    error
	calls  int
	prompt string
	params Params
}

func (s *stubLLM) Generate(_ context.Context, prompt string, params Params) (string, error) {
	s.calls++
	s.prompt = prompt
	s.params = params
	return s.reply, s.err
}

var sampleNotes = []models.Note{
	{ID: 1, Title: "Meeting with Team", Content: "Discussed project deadlines"},
	{ID: 2, Title: "Groceries", Content: "milk, eggs"},
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(sampleNotes)

	assert.True(t, strings.HasPrefix(p, "You are a personal assistant"))
	assert.Contains(t, p, "Title: Meeting with Team\nContent: Discussed project deadlines\n\n")
	assert.Contains(t, p, "Title: Groceries\nContent: milk, eggs\n\n")
	assert.Less(t, strings.Index(p, "Meeting"), strings.Index(p, "Groceries"), "notes keep their order")
	assert.True(t, strings.HasSuffix(p, "Please provide your insights."))
}

func TestExtractInsights(t *testing.T) {
	tests := []struct {
		name, reply, want string
	}{
		{"with marker", "preamble Insights:  Group by project. ", "Group by project."},
		{"last marker wins", "Insights: first\nInsights: second", "second"},
		{"no marker", "  just some text \n", "just some text"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractInsights(tt.reply))
		})
	}
}

func TestGenerator_Success(t *testing.T) {
	llm := &stubLLM{reply: "Sure. Insights: Tag meeting notes."}
	g := NewGenerator(llm, DefaultParams, nil)

	got, err := g.Generate(context.Background(), sampleNotes)
	require.NoError(t, err)

	assert.Equal(t, "Insights from your indexed notes:\n\nTag meeting notes.", got)
	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, DefaultParams, llm.params)
	assert.Equal(t, BuildPrompt(sampleNotes), llm.prompt)
}

func TestGenerator_FallbackOnFailure(t *testing.T) {
	llm := &stubLLM{err: errors.New("connection refused")}
	g := NewGenerator(llm, DefaultParams, nil)

	got, err := g.Generate(context.Background(), sampleNotes)
	require.NoError(t, err)
	assert.Equal(t, FallbackMessage, got)
}

func TestGenerator_PropagatesWhenPolicySaysSo(t *testing.T) {
	saved := apperr.Policies[apperr.OpInsights]
	t.Cleanup(func() { apperr.Policies[apperr.OpInsights] = saved })
	apperr.Policies[apperr.OpInsights] = apperr.Propagate

	cause := fmt.Errorf("inference: %w", apperr.ErrServiceUnavailable)
	g := NewGenerator(&stubLLM{err: cause}, DefaultParams, nil)

	got, err := g.Generate(context.Background(), sampleNotes)
	assert.ErrorIs(t, err, apperr.ErrServiceUnavailable)
	assert.Empty(t, got)
}

func TestGenerator_EmptyCollection(t *testing.T) {
	llm := &stubLLM{reply: "unused"}
	g := NewGenerator(llm, DefaultParams, nil)

	got, err := g.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, EmptyMessage, got)
	assert.Zero(t, llm.calls)
}

func TestNewHuggingFace_RequiresToken(t *testing.T) {
	_, err := NewHuggingFace(HuggingFaceConfig{Token: "  "})
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestHuggingFace_Generate(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`[{"generated_text":"Insights: keep a weekly review."}]`))
	}))
	defer srv.Close()

	h, err := NewHuggingFace(HuggingFaceConfig{BaseURL: srv.URL + "/", Token: "hf_test"})
	require.NoError(t, err)

	out, err := h.Generate(context.Background(), "prompt text", Params{Temperature: 0.7, MaxNewTokens: 64})
	require.NoError(t, err)

	assert.Equal(t, "Insights: keep a weekly review.", out)
	assert.Equal(t, "Bearer hf_test", gotAuth)
	assert.Equal(t, "/models/gpt2", gotPath)
	assert.Equal(t, "prompt text", gotBody.Inputs)
	assert.InDelta(t, 0.7, gotBody.Parameters.Temperature, 1e-9)
	assert.Equal(t, 64, gotBody.Parameters.MaxNewTokens)
	assert.False(t, gotBody.Parameters.ReturnFullText)
}

func TestHuggingFace_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"Model gpt2 is currently loading"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h, err := NewHuggingFace(HuggingFaceConfig{BaseURL: srv.URL, Token: "t"})
	require.NoError(t, err)

	_, err = h.Generate(context.Background(), "p", DefaultParams)
	assert.ErrorIs(t, err, apperr.ErrServiceUnavailable)
	assert.Contains(t, err.Error(), "status 503")
}

func TestHuggingFace_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	h, err := NewHuggingFace(HuggingFaceConfig{BaseURL: srv.URL, Token: "t"})
	require.NoError(t, err)

	_, err = h.Generate(context.Background(), "p", DefaultParams)
	assert.ErrorIs(t, err, apperr.ErrServiceUnavailable)
}

func TestHuggingFace_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	h, err := NewHuggingFace(HuggingFaceConfig{BaseURL: addr, Token: "t", Timeout: time.Second})
	require.NoError(t, err)

	g := NewGenerator(h, DefaultParams, nil)
	got, err := g.Generate(context.Background(), sampleNotes)
	require.NoError(t, err)
	assert.Equal(t, FallbackMessage, got)
}

func TestHuggingFace_SlowEndpointTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	h, err := NewHuggingFace(HuggingFaceConfig{
		BaseURL:    srv.URL,
		Token:      "hf_test",
		Timeout:    100 * time.Millisecond,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = h.Generate(context.Background(), "prompt", DefaultParams)
	assert.ErrorIs(t, err, apperr.ErrServiceUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	// The generator degrades to the fallback message on the same failure.
	gen := NewGenerator(h, DefaultParams, nil)
	got, err := gen.Generate(context.Background(), sampleNotes)
	require.NoError(t, err)
	assert.Equal(t, FallbackMessage, got)
}

func TestHuggingFace_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"generated_text":"ok"}]`))
	}))
	defer srv.Close()

	h, err := NewHuggingFace(HuggingFaceConfig{BaseURL: srv.URL, Token: "t", RatePerMinute: 1})
	require.NoError(t, err)

	_, err = h.Generate(context.Background(), "p", DefaultParams)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = h.Generate(ctx, "p", DefaultParams)
	assert.ErrorIs(t, err, apperr.ErrServiceUnavailable)
}
