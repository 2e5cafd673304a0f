package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storysize/storysize/internal/app"
	"github.com/storysize/storysize/pkg/config"
	"github.com/storysize/storysize/pkg/platform"
)

func newTestServer(t *testing.T, key string) *httptest.Server {
	t.Helper()
	c, err := app.Build(context.Background(), config.DefaultConfig(), app.Options{Offline: true})
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHandler(c.Service, c.Hours, nil).RegisterRoutes(mux)
	srv := httptest.NewServer(CORS(APIKeyAuth(key)(mux)))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string, header ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, "secret")
	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEstimate(t *testing.T) {
	srv := newTestServer(t, "")
	resp := post(t, srv, "/api/v1/estimate",
		`{"text":"Build a React dashboard backed by a new REST API and database table","platforms":["fe","backend"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		ID          string `json:"id"`
		StoryPoints int    `json:"story_points"`
		Platforms   []struct {
			Platform string `json:"platform"`
		} `json:"platforms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.NotEmpty(t, got.ID)
	assert.NotZero(t, got.StoryPoints)
	require.Len(t, got.Platforms, 2)
	assert.Equal(t, "frontend", got.Platforms[0].Platform)
	assert.Equal(t, "backend", got.Platforms[1].Platform)
}

func TestEstimateMarkdown(t *testing.T) {
	srv := newTestServer(t, "")
	resp := post(t, srv, "/api/v1/estimate", `{"text":"Add a login form","format":"markdown"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
}

func TestEstimateBadRequests(t *testing.T) {
	srv := newTestServer(t, "")
	tests := []struct {
		name string
		body string
	}{
		{"empty text", `{"text":"  "}`},
		{"unknown platform", `{"text":"x","platforms":["desktop"]}`},
		{"terminal format", `{"text":"x","format":"terminal"}`},
		{"unknown field", `{"txt":"x"}`},
		{"not json", `text`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := post(t, srv, "/api/v1/estimate", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestDetect(t *testing.T) {
	srv := newTestServer(t, "")
	resp := post(t, srv, "/api/v1/detect", `{"text":""}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var det platform.Detection
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&det))
	require.Len(t, det.Requirements, 1)
	assert.Equal(t, platform.Backend, det.Requirements[0].Platform)
	assert.Equal(t, platform.ScopeLow, det.Requirements[0].Scope)
}

func TestHours(t *testing.T) {
	srv := newTestServer(t, "")

	resp := post(t, srv, "/api/v1/hours", `{"points":5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got hoursResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Len(t, got.Models, 4)
	assert.True(t, got.Recommended.Valid())

	resp = post(t, srv, "/api/v1/hours", `{"points":5,"model":"exponential"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = hoursResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got.Models, 1)
	assert.InDelta(t, 13.28, got.Models[0].Expected, 0.01)

	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/api/v1/hours", `{"points":4}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/api/v1/hours", `{"points":5,"model":"magic"}`).StatusCode)
}

func TestAPIKeyAuth(t *testing.T) {
	srv := newTestServer(t, "secret")

	assert.Equal(t, http.StatusUnauthorized, post(t, srv, "/api/v1/hours", `{"points":3}`).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, post(t, srv, "/api/v1/hours", `{"points":3}`, "X-API-Key", "wrong").StatusCode)
	assert.Equal(t, http.StatusOK, post(t, srv, "/api/v1/hours", `{"points":3}`, "X-API-Key", "secret").StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, "secret")
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/estimate", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
