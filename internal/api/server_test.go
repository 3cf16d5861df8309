package api

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmate/shelfmate-server/internal/domain"
	"github.com/shelfmate/shelfmate-server/internal/metadata/googlebooks"
	"github.com/shelfmate/shelfmate-server/internal/normalize"
	"github.com/shelfmate/shelfmate-server/internal/service"
	"github.com/shelfmate/shelfmate-server/internal/store/sqlite"
)

const threeRecommendations = `[{"title":"X","reason":"Y"},{"title":"Z","reason":"W"},{"title":"Q","reason":"R"}]`

// testEnvelope mirrors Envelope with a typed payload.
type testEnvelope[T any] struct {
	Version int            `json:"v"`
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}

type stubGenerator struct {
	mu       sync.Mutex
	response string
	err      error
}

func (g *stubGenerator) Complete(_ context.Context, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.response, g.err
}

func (g *stubGenerator) set(response string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.response, g.err = response, err
}

type stubSearcher struct {
	volumes map[string][]googlebooks.Volume
}

func (s *stubSearcher) SearchByTitle(_ context.Context, title string) ([]googlebooks.Volume, error) {
	return s.volumes[normalize.Key(title)], nil
}

type stubCircuit struct{ open bool }

func (c stubCircuit) CircuitOpen() bool { return c.open }

// testServer wraps the API server for handler testing.
type testServer struct {
	*Server
	api       humatest.TestAPI
	store     *sqlite.Store
	generator *stubGenerator
}

func setupTestServer(t *testing.T, quota service.QuotaConfig) *testServer {
	t.Helper()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.DiscardHandler)
	generator := &stubGenerator{response: threeRecommendations}
	searcher := &stubSearcher{volumes: map[string][]googlebooks.Volume{
		"x": {{
			Title:         "X",
			Authors:       []string{"Author X"},
			Publisher:     "Tor",
			PublishedYear: 2011,
			ISBN13:        "9780000000001",
			PageCount:     320,
			Thumbnail:     "https://books.example/x.jpg",
			Description:   "A book about X.",
		}},
	}}

	catalog := service.NewCatalogService(st, searcher, nil, logger)
	quotaService := service.NewQuotaService(st, quota, logger)
	recommendations := service.NewRecommendationService(
		st,
		quotaService,
		generator,
		service.NewEnricher(catalog, logger),
		service.RecommendationConfig{RejectionWindow: 30 * 24 * time.Hour, GenerationTimeout: time.Second},
		logger,
	)

	s := NewServer(st, stubCircuit{}, &Services{
		Recommendation: recommendations,
		Quota:          quotaService,
	}, Options{Version: "test"}, logger)

	return &testServer{
		Server:    s,
		api:       humatest.Wrap(t, s.api),
		store:     st,
		generator: generator,
	}
}

func (ts *testServer) onboard(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, ts.store.SaveSurveyState(context.Background(), &domain.SurveyState{
		UserID:    userID,
		Pace:      domain.PaceSlow,
		Genres:    []domain.Genre{domain.GenreFantasy},
		FirstTime: false,
	}))
}

func asUser(userID string) string {
	return UserIDHeader + ": " + userID
}

func decode[T any](t *testing.T, body []byte) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	return env
}

func (ts *testServer) generate(t *testing.T, userID string) GenerateRecommendationsResponse {
	t.Helper()
	resp := ts.api.Post("/api/v1/recommendations", asUser(userID), map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	return decode[GenerateRecommendationsResponse](t, resp.Body.Bytes()).Data
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t, service.QuotaConfig{Enabled: true, MaxPerDay: 3})

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	env := decode[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.True(t, env.Success)
	assert.Equal(t, "healthy", env.Data.Status)
	assert.Equal(t, "healthy", env.Data.Components["database"].Status)
	assert.Equal(t, "healthy", env.Data.Components["text_generation"].Status)
}

func TestHealthCheck_OpenCircuitDegrades(t *testing.T) {
	ts := setupTestServer(t, service.QuotaConfig{Enabled: true, MaxPerDay: 3})
	ts.Server.generator = stubCircuit{open: true}

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	env := decode[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, "degraded", env.Data.Status)
	assert.Equal(t, "circuit open", env.Data.Components["text_generation"].Message)
}

func TestGenerateRecommendations(t *testing.T) {
	ts := setupTestServer(t, service.QuotaConfig{Enabled: true, MaxPerDay: 3})
	ts.onboard(t, "user-1")

	resp := ts.api.Post("/api/v1/recommendations", asUser("user-1"), map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	env := decode[GenerateRecommendationsResponse](t, resp.Body.Bytes())
	require.True(t, env.Success)

	got := env.Data
	assert.NotEmpty(t, got.BatchID)
	assert.Equal(t, 2, got.Remaining)
	require.Len(t, got.Recommendations, 3)

	x := got.Recommendations[0]
	assert.Equal(t, "X", x.Title)
	assert.Equal(t, "Y", x.Reason)
	assert.Equal(t, "pending", x.Status)
	assert.True(t, x.Enriched)
	require.NotNil(t, x.BookID)
	require.NotNil(t, x.CoverURL)
	assert.Equal(t, "https://books.example/x.jpg", *x.CoverURL)
	require.NotNil(t, x.PublishedYear)
	assert.Equal(t, 2011, *x.PublishedYear)
	assert.Equal(t, []string{"Author X"}, x.Authors)

	z := got.Recommendations[1]
	assert.Equal(t, "Z", z.Title)
	assert.Equal(t, "W", z.Reason)
	assert.False(t, z.Enriched)
	assert.Nil(t, z.BookID)
	assert.Nil(t, z.CoverURL)
	assert.Empty(t, z.Authors)

	// Unmatched fields are explicit nulls on the wire.
	assert.Contains(t, resp.Body.String(), `"cover_url":null`)
}

func TestGenerateRecommendations_WithoutBody(t *testing.T) {
	ts := setupTestServer(t, service.QuotaConfig{Enabled: true, MaxPerDay: 3})
	ts.onboard(t, "user-1")

	resp := ts.api.Post("/api/v1/recommendations", asUser("user-1"))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestGenerateRecommendations_RequiresIdentity(t *testing.T) {
	ts := setupTestServer(t, service.QuotaConfig{Enabled: true, MaxPerDay: 3})

	resp := ts.api.Post("/api/v1/recommendations", map[string]any{})
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	env := decode[any](t, resp.Body.Bytes())
	assert.False(t, env.Success)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
}

func TestGenerateRecommendations_Errors(t *testing.T) {
	tests := []struct {
		name     string
		onboard  bool
		response string
		err      error
		status   int
		code     string
	}{
		{name: "not onboarded", status: http.StatusPreconditionFailed, code: "ONBOARDING_INCOMPLETE"},
		{name: "upstream failure", onboard: true, err: context.DeadlineExceeded, status: http.StatusServiceUnavailable, code: "UPSTREAM_UNAVAILABLE"},
		{name: "prose", onboard: true, response: "I recommend Dune.", status: http.StatusBadGateway, code: "MALFORMED_OUTPUT"},
		{name: "empty array", onboard: true, response: "[]", status: http.StatusBadGateway, code: "NO_VALID_RECOMMENDATIONS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServer(t, service.QuotaConfig{Enabled: true, MaxPerDay: 3})
			if tt.onboard {
				ts.onboard(t, "user-1")
			}
			ts.generator.set(tt.response, tt.err)

			resp := ts.api.Post("/api/v1/recommendations", asUser("user-1"), map[string]any{})
			require.Equal(t, tt.status, resp.Code, resp.Body.String())
			assert.Equal(t, tt.code, decode[any](t, resp.Body.Bytes()).Code)
		})
	}
}

func TestGenerateRecommendations_QuotaExceeded(t *testing.T) {
	ts := setupTestServer(t, service.QuotaConfig{Enabled: true, MaxPerDay: 1})
	ts.onboard(t, "user-1")

	first := ts.generate(t, "user-1")
	assert.Equal(t, 0, first.Remaining)

	resp := ts.api.Post("/api/v1/recommendations", asUser("user-1"), map[string]any{})
	require.Equal(t, http.StatusTooManyRequests, resp.Code)

	env := decode[any](t, resp.Body.Bytes())
	assert.False(t, env.Success)
	assert.Equal(t, "QUOTA_EXCEEDED", env.Code)
	assert.Equal(t, float64(0), env.Details["remaining"])
	assert.Equal(t, "24 hours", env.Details["reset_in"])
}

func TestGenerateRecommendations_TooManyRejectedTitles(t *testing.T) {
	ts := setupTestServer(t, service.QuotaConfig{Enabled: true, MaxPerDay: 3})
	ts.onboard(t, "user-1")

	titles := make([]string, 51)
	for i := range titles {
		titles[i] = "Title"
	}
	resp := ts.api.Post("/api/v1/recommendations", asUser("user-1"), map[string]any{
		"rejected_titles": titles,
	})
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
	assert.Equal(t, "VALIDATION", decode[any](t, resp.Body.Bytes()).Code)
}

func TestGetRecommendationQuota(t *testing.T) {
	ts := setupTestServer(t, service.QuotaConfig{Enabled: true, MaxPerDay: 3})
	ts.onboard(t, "user-1")
	ts.generate(t, "user-1")

	resp := ts.api.Get("/api/v1/recommendations/quota", asUser("user-1"))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	got := decode[QuotaResponse](t, resp.Body.Bytes()).Data
	assert.True(t, got.Enforced)
	assert.Equal(t, 3, got.MaxPerDay)
	assert.Equal(t, 2, got.Remaining)
	assert.Equal(t, domain.DayOf(time.Now()), got.Day)
}

func TestRespondToRecommendation(t *testing.T) {
	ts := setupTestServer(t, service.QuotaConfig{Enabled: true, MaxPerDay: 3})
	ts.onboard(t, "user-1")
	batch := ts.generate(t, "user-1")
	recID := batch.Recommendations[0].ID
	path := "/api/v1/recommendations/" + recID

	t.Run("foreign user", func(t *testing.T) {
		resp := ts.api.Patch(path, asUser("user-2"), map[string]any{"status": "accepted"})
		require.Equal(t, http.StatusNotFound, resp.Code, resp.Body.String())
		assert.Equal(t, "NOT_FOUND", decode[any](t, resp.Body.Bytes()).Code)
	})

	t.Run("unknown status", func(t *testing.T) {
		resp := ts.api.Patch(path, asUser("user-1"), map[string]any{"status": "maybe"})
		require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
		assert.Equal(t, "VALIDATION", decode[any](t, resp.Body.Bytes()).Code)
	})

	t.Run("accept", func(t *testing.T) {
		resp := ts.api.Patch(path, asUser("user-1"), map[string]any{"status": "accepted"})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		got := decode[RecommendationResponse](t, resp.Body.Bytes()).Data
		assert.Equal(t, recID, got.ID)
		assert.Equal(t, "accepted", got.Status)
		assert.Equal(t, batch.BatchID, got.BatchID)
		assert.NotNil(t, got.RespondedAt)
	})

	t.Run("already answered", func(t *testing.T) {
		resp := ts.api.Patch(path, asUser("user-1"), map[string]any{"status": "rejected"})
		require.Equal(t, http.StatusConflict, resp.Code, resp.Body.String())
		assert.Equal(t, "CONFLICT", decode[any](t, resp.Body.Bytes()).Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		resp := ts.api.Patch("/api/v1/recommendations/rec-missing", asUser("user-1"), map[string]any{"status": "accepted"})
		require.Equal(t, http.StatusNotFound, resp.Code, resp.Body.String())
	})
}

func TestListRecommendations(t *testing.T) {
	ts := setupTestServer(t, service.QuotaConfig{Enabled: true, MaxPerDay: 3})
	ts.onboard(t, "user-1")
	batch := ts.generate(t, "user-1")

	resp := ts.api.Patch("/api/v1/recommendations/"+batch.Recommendations[1].ID, asUser("user-1"), map[string]any{"status": "rejected"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/recommendations", asUser("user-1"))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	all := decode[ListRecommendationsResponse](t, resp.Body.Bytes()).Data.Recommendations
	require.Len(t, all, 3)
	assert.Equal(t, []string{"X", "Z", "Q"}, []string{all[0].Title, all[1].Title, all[2].Title})

	resp = ts.api.Get("/api/v1/recommendations?status=rejected", asUser("user-1"))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	rejected := decode[ListRecommendationsResponse](t, resp.Body.Bytes()).Data.Recommendations
	require.Len(t, rejected, 1)
	assert.Equal(t, "Z", rejected[0].Title)

	resp = ts.api.Get("/api/v1/recommendations", asUser("user-2"))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[ListRecommendationsResponse](t, resp.Body.Bytes()).Data.Recommendations)

	resp = ts.api.Get("/api/v1/recommendations?status=shelved", asUser("user-1"))
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, service.QuotaConfig{Enabled: true, MaxPerDay: 3})
	ts.api.Get("/health")

	resp := ts.api.Get("/metrics")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.Contains(resp.Body.String(), "shelfmate_api_requests_total"))
}
