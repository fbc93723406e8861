package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rowan-T/clover/pkg/httpclient"
	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/models"
)

type stubGenerator struct {
	narrative *GeneratedNarrative
	err       error
	calls     int
}

func (s *stubGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (*GeneratedNarrative, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.narrative, nil
}

func testProfile() models.SearchProfile {
	school := "Riverside High"
	return models.SearchProfile{
		AthleteTier:         models.AthleteTierHighSchool,
		SchoolOrAffiliation: &school,
		Categories:          []string{"coffee", "fitness"},
		ContentTypes:        []string{"short video"},
		FollowingByPlatform: map[string]int64{"instagram": 2000},
		EngagementRate:      0.045,
		TimeCommitment:      4,
	}
}

func TestSynthesizer_Synthesize(t *testing.T) {
	ctx := context.Background()

	t.Run("uses generated narrative when generation succeeds", func(t *testing.T) {
		gen := &stubGenerator{narrative: &GeneratedNarrative{
			Summary:             "An energetic athlete.",
			Traits:              []string{"driven"},
			Interests:           []string{"coffee"},
			SuggestedCategories: []string{"coffee shop"},
		}}
		s := NewSynthesizer(gen, logging.NewNop())

		profile := s.Synthesize(ctx, "subject-1", "q-1", testProfile(), nil)

		assert.Equal(t, models.NarrativeSourceGenerated, profile.Source)
		assert.Equal(t, "An energetic athlete.", profile.Summary)
		assert.Equal(t, []string{"coffee shop"}, profile.SuggestedCategories.Data)
		assert.Equal(t, "subject-1", profile.SubjectID)
		assert.Equal(t, "q-1", profile.QuestionnaireID)
	})

	t.Run("generation failure falls back to the template", func(t *testing.T) {
		gen := &stubGenerator{err: fmt.Errorf("service unavailable")}
		s := NewSynthesizer(gen, logging.NewNop())

		profile := s.Synthesize(ctx, "subject-1", "q-1", testProfile(), nil)

		assert.Equal(t, models.NarrativeSourceFallback, profile.Source)
		assert.NotEmpty(t, profile.Summary)
		assert.Contains(t, profile.Summary, "Riverside High")
		assert.Contains(t, profile.Summary, "2000 followers")
		assert.Equal(t, []string{"coffee", "fitness"}, profile.SuggestedCategories.Data)
	})

	t.Run("nil generator always falls back", func(t *testing.T) {
		s := NewSynthesizer(nil, logging.NewNop())

		profile := s.Synthesize(ctx, "subject-1", "q-1", testProfile(), nil)
		assert.Equal(t, models.NarrativeSourceFallback, profile.Source)
	})

	t.Run("fallback is deterministic", func(t *testing.T) {
		s := NewSynthesizer(nil, logging.NewNop())

		first := s.Synthesize(ctx, "subject-1", "q-1", testProfile(), nil)
		second := s.Synthesize(ctx, "subject-1", "q-1", testProfile(), nil)
		assert.Equal(t, first.Summary, second.Summary)
		assert.Equal(t, first.Traits.Data, second.Traits.Data)
	})

	t.Run("fallback supplies categories when the profile has none", func(t *testing.T) {
		s := NewSynthesizer(nil, logging.NewNop())
		profile := testProfile()
		profile.Categories = nil

		result := s.Synthesize(ctx, "subject-1", "q-1", profile, nil)
		assert.NotEmpty(t, result.SuggestedCategories.Data)
	})

	t.Run("summaries truncate to the cap", func(t *testing.T) {
		gen := &stubGenerator{narrative: &GeneratedNarrative{
			Summary: strings.Repeat("a", models.MaxSummaryLength+500),
		}}
		s := NewSynthesizer(gen, logging.NewNop())

		profile := s.Synthesize(ctx, "subject-1", "q-1", testProfile(), nil)
		assert.Len(t, profile.Summary, models.MaxSummaryLength)
	})

	t.Run("the normalized profile is stored on the narrative", func(t *testing.T) {
		gen := &stubGenerator{narrative: &GeneratedNarrative{Summary: "ok"}}
		s := NewSynthesizer(gen, logging.NewNop())

		input := testProfile()
		profile := s.Synthesize(ctx, "subject-1", "q-1", input, nil)
		assert.Equal(t, input, profile.Profile.Data)
	})

	t.Run("truncation never splits a multi-byte rune", func(t *testing.T) {
		gen := &stubGenerator{narrative: &GeneratedNarrative{
			Summary: "a" + strings.Repeat("é", models.MaxSummaryLength),
		}}
		s := NewSynthesizer(gen, logging.NewNop())

		profile := s.Synthesize(ctx, "subject-1", "q-1", testProfile(), nil)
		assert.True(t, utf8.ValidString(profile.Summary))
		assert.LessOrEqual(t, len(profile.Summary), models.MaxSummaryLength)
	})

	t.Run("nil slices become empty slices for storage", func(t *testing.T) {
		gen := &stubGenerator{narrative: &GeneratedNarrative{Summary: "ok"}}
		s := NewSynthesizer(gen, logging.NewNop())

		profile := s.Synthesize(ctx, "subject-1", "q-1", testProfile(), nil)
		assert.NotNil(t, profile.Traits.Data)
		assert.NotNil(t, profile.Interests.Data)
		assert.NotNil(t, profile.SuggestedCategories.Data)
	})
}

func newTestGenerator(serverURL string) *HTTPGenerator {
	httpClient := httpclient.NewClient(httpclient.Config{}, logging.NewNop())
	return NewHTTPGenerator(Config{
		BaseURL: serverURL,
		APIKey:  "test-key",
		Model:   "test-model",
	}, httpClient, logging.NewNop())
}

func chatServerResponse(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	return string(body)
}

func TestHTTPGenerator_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("parses the structured payload from the first choice", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "test-model", req["model"])

			fmt.Fprint(w, chatServerResponse(`{"summary":"Great athlete.","traits":["bold"],"interests":["coffee"],"suggested_categories":["coffee shop"]}`))
		}))
		defer server.Close()

		narrative, err := newTestGenerator(server.URL).Generate(ctx, "system", "user")
		require.NoError(t, err)
		assert.Equal(t, "Great athlete.", narrative.Summary)
		assert.Equal(t, []string{"coffee shop"}, narrative.SuggestedCategories)
	})

	t.Run("non-2xx status is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := newTestGenerator(server.URL).Generate(ctx, "system", "user")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("unparsable content is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, chatServerResponse("sorry, I can only answer in prose"))
		}))
		defer server.Close()

		_, err := newTestGenerator(server.URL).Generate(ctx, "system", "user")
		require.Error(t, err)
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"choices":[]}`)
		}))
		defer server.Close()

		_, err := newTestGenerator(server.URL).Generate(ctx, "system", "user")
		require.Error(t, err)
	})

	t.Run("empty summary is rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, chatServerResponse(`{"summary":"","traits":[]}`))
		}))
		defer server.Close()

		_, err := newTestGenerator(server.URL).Generate(ctx, "system", "user")
		require.Error(t, err)
	})
}
