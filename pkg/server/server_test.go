package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jingkaihe/skillkit/pkg/activation"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*skills.Store
	err error
}

func (f *failingStore) Reload(_ context.Context) (*skills.Registry, error) {
	return f.Current(), f.err
}

func newTestServer(t *testing.T) (*Server, *skills.Store) {
	t.Helper()
	store := skills.NewStore(skills.StaticSource{
		{ID: "A", FilePatterns: []string{"**/*.cds"}, Category: "data", Body: "A body"},
		{ID: "B", DisplayName: "Fiori", Keywords: []string{"fiori"}, Category: "ui", Body: "B body"},
		{ID: "C", FilePatterns: []string{"**/manifest.json"}, Category: "ui", Body: "C body"},
		{ID: "broken", Body: ""},
	})
	_, err := store.Reload(context.Background())
	require.NoError(t, err)

	engine, err := activation.NewEngine(store)
	require.NoError(t, err)

	srv, err := NewServer(&ServerConfig{Host: "localhost", Port: 8080}, engine, store)
	require.NoError(t, err)
	return srv, store
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name          string
		config        *ServerConfig
		expectedError string
	}{
		{name: "valid config", config: &ServerConfig{Host: "localhost", Port: 8080}},
		{name: "empty host", config: &ServerConfig{Host: "", Port: 8080}, expectedError: "host cannot be empty"},
		{name: "invalid port - too low", config: &ServerConfig{Host: "localhost", Port: 0}, expectedError: "port must be between 1 and 65535"},
		{name: "invalid port - too high", config: &ServerConfig{Host: "localhost", Port: 65536}, expectedError: "port must be between 1 and 65535"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServer_handleActivate(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, "POST", "/api/activate", `{"activeFiles":["app/manifest.json"],"promptText":"build a fiori list report"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp activation.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"C", "B"}, resp.SkillIDs)
	assert.False(t, resp.Truncated)
	assert.Contains(t, resp.Document, "<!-- skill: C -->")
	assert.Equal(t, uint64(1), resp.RegistryVersion)
}

func TestServer_handleActivateErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "malformed json", body: `{"activeFiles":`, message: "invalid request body"},
		{name: "unknown field", body: `{"files":["a"]}`, message: "invalid request body"},
		{name: "negative budget", body: `{"budget":-5}`, message: "activation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, "POST", "/api/activate", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body["error"])
			assert.Equal(t, false, body["success"])
			assert.Equal(t, float64(http.StatusBadRequest), body["status"])
		})
	}
}

func TestServer_handleDiagnose(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, "POST", "/api/diagnose", `{"activeFiles":["app/manifest.json"],"promptText":"!@fiori"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var diag activation.Diagnosis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &diag))
	assert.Len(t, diag.Matches, 3)
	assert.Equal(t, []string{"C"}, diag.SkillIDs)
}

func TestServer_handleListSkills(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, "GET", "/api/skills", "")
	require.Equal(t, http.StatusOK, w.Code)

	var info RegistryInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, uint64(1), info.Version)
	require.Len(t, info.Skills, 3)
	assert.Equal(t, "A", info.Skills[0].ID)
	assert.Equal(t, []string{".cds"}, info.Skills[0].TargetExtensions)
	assert.Equal(t, skills.CategoryUI, info.Skills[1].Category)
	require.Len(t, info.Issues, 1)
	assert.Contains(t, info.Issues[0], "body is empty")
}

func TestDescribeRegistry_GroupsByCategory(t *testing.T) {
	reg, err := skills.Load(context.Background(), []skills.Record{
		{Spec: skills.Spec{ID: "commit", Body: "c"}},
		{Spec: skills.Spec{ID: "fiori", Category: "ui", Body: "f"}},
		{Spec: skills.Spec{ID: "cap-cds", Category: "data", Body: "d"}},
	})
	require.NoError(t, err)

	info := DescribeRegistry(reg)
	require.Len(t, info.Skills, 3)
	assert.Equal(t, "cap-cds", info.Skills[0].ID)
	assert.Equal(t, "fiori", info.Skills[1].ID)
	assert.Equal(t, "commit", info.Skills[2].ID)
}

func TestServer_handleGetSkill(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, "GET", "/api/skills/fiori", "")
	require.Equal(t, http.StatusOK, w.Code)

	var skill skills.Skill
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &skill))
	assert.Equal(t, "B", skill.ID)
	assert.Equal(t, "B body", skill.Body)

	w = do(t, srv, "GET", "/api/skills/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `skill \"missing\" not found`)
}

func TestServer_handleReload(t *testing.T) {
	srv, store := newTestServer(t)

	w := do(t, srv, "POST", "/api/reload", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info RegistryInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, uint64(2), info.Version)

	engine, err := activation.NewEngine(store)
	require.NoError(t, err)

	t.Run("timeout", func(t *testing.T) {
		failing := &failingStore{Store: store, err: &skills.ReloadTimeoutError{}}
		s, err := NewServer(&ServerConfig{Host: "localhost", Port: 8080}, engine, failing)
		require.NoError(t, err)
		assert.Equal(t, http.StatusGatewayTimeout, do(t, s, "POST", "/api/reload", "").Code)
	})

	t.Run("source error", func(t *testing.T) {
		failing := &failingStore{Store: store, err: &skills.ReloadSourceError{Err: errors.New("no valid descriptors")}}
		s, err := NewServer(&ServerConfig{Host: "localhost", Port: 8080}, engine, failing)
		require.NoError(t, err)
		w := do(t, s, "POST", "/api/reload", "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "no valid descriptors")
	})
}

func TestServer_handleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, "GET", "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(3), body["skills"])
}

func TestServer_methodsAndCORS(t *testing.T) {
	srv, _ := newTestServer(t)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, srv, "GET", "/api/activate", "").Code)

	w := do(t, srv, "OPTIONS", "/api/skills", "")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewServerRequiresDependencies(t *testing.T) {
	_, err := NewServer(&ServerConfig{Host: "localhost", Port: 8080}, nil, nil)
	assert.Error(t, err)

	_, err = NewServer(&ServerConfig{Host: "", Port: 8080}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server configuration")
}
