package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/irisdrone/pipewatch/database"
	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/irisdrone/pipewatch/internal/risk"
	"github.com/irisdrone/pipewatch/models"
	"github.com/irisdrone/pipewatch/services"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("test-secret")

type fakeUsers struct {
	users map[string]models.User
}

func (f fakeUsers) FindByUsername(_ context.Context, username string) (models.User, error) {
	u, ok := f.users[username]
	if !ok {
		return models.User{}, database.ErrUserNotFound
	}
	return u, nil
}

type fakeDefects struct {
	mu  sync.Mutex
	reg []registry.Defect
}

func (f *fakeDefects) Load(context.Context) ([]registry.Defect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return registry.Clone(f.reg), nil
}

func (f *fakeDefects) Replace(_ context.Context, reg []registry.Defect) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reg = registry.Clone(reg)
	return nil
}

func (f *fakeDefects) WriteStatus(context.Context, string, registry.Status) error { return nil }

type fakeReadings struct {
	mu      sync.Mutex
	control []models.ControlSystemReading
	drone   []models.DroneCapture
}

func (f *fakeReadings) ReplaceControlSystem(_ context.Context, rows []models.ControlSystemReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.control = rows
	return nil
}

func (f *fakeReadings) ReplaceDrone(_ context.Context, rows []models.DroneCapture) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drone = rows
	return nil
}

func (f *fakeReadings) ControlSystem(_ context.Context, limit int) ([]models.ControlSystemReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > 0 && limit < len(f.control) {
		return f.control[:limit], nil
	}
	return f.control, nil
}

func (f *fakeReadings) Drone(_ context.Context, limit int) ([]models.DroneCapture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > 0 && limit < len(f.drone) {
		return f.drone[:limit], nil
	}
	return f.drone, nil
}

func (f *fakeReadings) ControlSystemSummary(context.Context) (database.ControlSystemSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s database.ControlSystemSummary
	for _, r := range f.control {
		s.Total++
		switch r.Status {
		case models.ReadingCritical:
			s.Critical++
		case models.ReadingWarning:
			s.Warning++
		default:
			s.Normal++
		}
	}
	return s, nil
}

func (f *fakeReadings) DroneSummary(context.Context) (database.DroneSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s database.DroneSummary
	for _, r := range f.drone {
		s.Total++
		if r.MediaType == models.MediaVideo {
			s.Videos++
		} else {
			s.Images++
		}
	}
	return s, nil
}

type fakeCompleter struct {
	last openai.ChatCompletionRequest
	err  error
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.last = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Content: "Isolate and depressurize."}},
	}}, nil
}

type env struct {
	router   *gin.Engine
	handler  *Handler
	readings *fakeReadings
	token    string
}

func leak(loc string) detection.Snapshot {
	return detection.NewSnapshot(
		[]detection.RawDetection{{DefectType: risk.MajorSuddenLeak, Sign: "High pressure drop", Source: "PT", Location: loc}},
		[]detection.RawDetection{{DefectType: risk.MajorSuddenLeak, Sign: "Detection of gas cloud", Source: "Spectroscopic sensor", Location: loc}},
		1,
	)
}

func newEnv(t *testing.T, chat *services.ChatService) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("avash123"), bcrypt.MinCost)
	require.NoError(t, err)
	users := fakeUsers{users: map[string]models.User{
		"petro": {Username: "petro", Email: "petro@example.com", PasswordHash: string(hash)},
	}}

	monitor, err := services.NewMonitor(context.Background(), services.MonitorConfig{
		Acquirer: detection.AcquirerFunc(func(context.Context) (detection.Snapshot, error) { return leak("Station Area"), nil }),
		Defects:  &fakeDefects{reg: registry.Seed()},
		Rand:     detection.NewSeededRand(5),
	})
	require.NoError(t, err)

	readings := &fakeReadings{}
	h := New(Deps{
		Users:             users,
		Monitor:           monitor,
		Readings:          readings,
		Samples:           services.NewSampleGenerator(detection.NewSeededRand(9), nil),
		Chat:              chat,
		JWTSecret:         testSecret,
		AccessTokenExpiry: time.Hour,
		ChatRatePerMinute: 2,
	})
	r := gin.New()
	h.Register(r)

	tok, err := h.issueToken("petro", time.Now())
	require.NoError(t, err)
	return &env{router: r, handler: h, readings: readings, token: tok}
}

func (e *env) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func TestLogin(t *testing.T) {
	e := newEnv(t, nil)

	tests := []struct {
		name        string
		contentType string
		body        string
		want        int
	}{
		{"form", "application/x-www-form-urlencoded", url.Values{"username": {"petro"}, "password": {"avash123"}}.Encode(), http.StatusOK},
		{"json", "application/json", `{"username": "petro", "password": "avash123"}`, http.StatusOK},
		{"wrong password", "application/json", `{"username": "petro", "password": "nope"}`, http.StatusUnauthorized},
		{"unknown user", "application/json", `{"username": "ghost", "password": "x"}`, http.StatusUnauthorized},
		{"missing fields", "application/json", `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()
			e.router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.want == http.StatusOK {
				var resp TokenResponse
				decode(t, w, &resp)
				assert.Equal(t, "bearer", resp.TokenType)
				assert.NotEmpty(t, resp.AccessToken)
			}
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	e := newEnv(t, nil)
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "petro",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	expiredTok, err := expired.SignedString(testSecret)
	require.NoError(t, err)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "petro",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"valid", e.token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"expired", expiredTok, http.StatusUnauthorized},
		{"wrong secret", forged, http.StatusUnauthorized},
		{"garbage", "abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.token = tt.token
			w := e.do(t, http.MethodGet, "/api/auth/verify", "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestVerify(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodGet, "/api/auth/verify", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	decode(t, w, &resp)
	assert.Equal(t, map[string]string{"username": "petro", "email": "petro@example.com"}, resp)
}

func TestOverviewStats(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodGet, "/api/detection/overview-stats", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		LeakageStatus json.RawMessage              `json:"leakage_status"`
		ControlSystem database.ControlSystemSummary `json:"control_system"`
		Drone         database.DroneSummary         `json:"drone"`
	}
	decode(t, w, &resp)
	snap, err := detection.Decode(resp.LeakageStatus)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TotalCount)
	assert.Equal(t, int64(services.DefaultControlSystemCount), resp.ControlSystem.Total)
	assert.Equal(t, int64(services.DefaultDroneCount), resp.Drone.Total)
	assert.Equal(t, resp.Drone.Total, resp.Drone.Videos+resp.Drone.Images)

	events := e.do(t, http.MethodGet, "/api/detection/events?limit=1", "")
	var list struct {
		Total  int               `json:"total"`
		Events []registry.Defect `json:"events"`
	}
	decode(t, events, &list)
	require.Len(t, list.Events, 1)
	assert.Equal(t, "Station Area", list.Events[0].Location)
	assert.True(t, list.Events[0].Active())
}

func TestGetEvents(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodGet, "/api/detection/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Total  int               `json:"total"`
		Events []registry.Defect `json:"events"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 12, resp.Total)
	assert.Equal(t, "DEF-001", resp.Events[0].ID)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/detection/events?limit=abc", "").Code)
}

func TestUpdateEventStatus(t *testing.T) {
	e := newEnv(t, nil)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"resolve by id", "/api/detection/events/DEF-003/status", `{"status": "resolved"}`, http.StatusOK},
		{"alias", "/api/detection/events/DEF-002/status", `{"status": "in_progress"}`, http.StatusOK},
		{"fallback to key", "/api/detection/events/DEF-555/status",
			`{"status": "progress", "location": "Branch Line", "defect_type": "Insulation/Coating Failure"}`, http.StatusOK},
		{"invalid status", "/api/detection/events/DEF-003/status", `{"status": "closed"}`, http.StatusBadRequest},
		{"missing status", "/api/detection/events/DEF-003/status", `{}`, http.StatusBadRequest},
		{"unknown id", "/api/detection/events/DEF-999/status", `{"status": "resolved"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, http.MethodPatch, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	d, ok := e.handler.Monitor.Get("DEF-004")
	require.True(t, ok)
	assert.Equal(t, registry.StatusInProgress, d.Status)
}

func TestRegenerateAndData(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/api/detection/regenerate-data?control_system_count=20&drone_count=30", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.Equal(t, float64(20), resp["control_system_records"])
	assert.Equal(t, float64(30), resp["drone_records"])

	w = e.do(t, http.MethodGet, "/api/detection/control-system/data?limit=5", "")
	var data struct {
		Total int64                         `json:"total"`
		Data  []models.ControlSystemReading `json:"data"`
	}
	decode(t, w, &data)
	assert.Equal(t, int64(20), data.Total)
	assert.Len(t, data.Data, 5)

	w = e.do(t, http.MethodGet, "/api/detection/drone/summary", "")
	var drone map[string]interface{}
	decode(t, w, &drone)
	assert.Equal(t, float64(30), drone["total"])
	assert.Contains(t, drone, "videos")
}

func TestSimulateDetection(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/api/detection/simulate-detection", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.Equal(t, "New detection simulated successfully", resp["message"])
	assert.Equal(t, float64(1), resp["events_created"])
}

func TestExportControlSystem(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodGet, "/api/detection/export/control-system", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "control_system_data.csv")
	records, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "timestamp", records[0][0])
	assert.Len(t, records, services.DefaultControlSystemCount+1)
}

func TestChat(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		e := newEnv(t, services.NewChatService("", "gpt-4.1-nano", 0.7))
		w := e.do(t, http.MethodPost, "/api/chat/send", `{"message": "hi"}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("answers and rate limits", func(t *testing.T) {
		fc := &fakeCompleter{}
		e := newEnv(t, services.NewChatService("", "gpt-4.1-nano", 0.7, services.WithCompleter(fc)))

		w := e.do(t, http.MethodPost, "/api/chat/send", `{"message": "What now?", "defect_id": "DEF-003"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp map[string]string
		decode(t, w, &resp)
		assert.Equal(t, "Isolate and depressurize.", resp["response"])
		assert.Contains(t, fc.last.Messages[0].Content, "Corrosion & Erosion")

		assert.Equal(t, http.StatusTooManyRequests, e.do(t, http.MethodPost, "/api/chat/send", `{"message": "again"}`).Code)
	})

	t.Run("malformed requests do not use the rate", func(t *testing.T) {
		e := newEnv(t, services.NewChatService("", "gpt-4.1-nano", 0.7, services.WithCompleter(&fakeCompleter{})))

		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/chat/send", `{}`).Code)
		}
		assert.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/chat/send", `{"message": "first"}`).Code)
		assert.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/chat/send", `{"message": "second"}`).Code)
		assert.Equal(t, http.StatusTooManyRequests, e.do(t, http.MethodPost, "/api/chat/send", `{"message": "third"}`).Code)
	})

	t.Run("upstream failure", func(t *testing.T) {
		fc := &fakeCompleter{err: errors.New("upstream timeout")}
		e := newEnv(t, services.NewChatService("", "gpt-4.1-nano", 0.7, services.WithCompleter(fc)))

		w := e.do(t, http.MethodPost, "/api/chat/send", `{"message": "What now?"}`)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.JSONEq(t, `{"error": "Chat service error"}`, w.Body.String())
	})
}

func TestBriefing(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodGet, "/api/chat/defects/DEF-001/briefing", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	decode(t, w, &resp)
	assert.Equal(t, "DEF-001", resp["defect_id"])
	assert.NotEmpty(t, resp["action_level"])
	assert.Contains(t, resp["message"], "Section A-B")

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/chat/defects/DEF-999/briefing", "").Code)
}

func TestHealthAndFeedStats(t *testing.T) {
	e := newEnv(t, nil)

	health := e.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, health.Code)
	var h map[string]interface{}
	decode(t, health, &h)
	assert.Equal(t, "ok", h["status"])
	assert.NotContains(t, h, "lastRefreshError")

	w := e.do(t, http.MethodGet, "/api/feeds/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"enabled": false}`, w.Body.String())
}
