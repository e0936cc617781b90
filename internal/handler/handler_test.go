package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"signage-server/internal/cache"
	"signage-server/internal/config"
	"signage-server/internal/presence"
	"signage-server/internal/repository"
	"signage-server/internal/service"
	"signage-server/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testServer struct {
	t      *testing.T
	db     *gorm.DB
	clock  *fakeClock
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "release"},
		Database: config.DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "test.db"),
		},
	}
	db, err := repository.OpenDatabase(cfg)
	if err != nil {
		t.Fatalf("OpenDatabase failed: %v", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	t.Cleanup(func() { _ = repository.Close(db) })

	clock := &fakeClock{now: testNow}
	log := zerolog.Nop()
	jwtService := jwt.NewJWTService("test-secret", 720*time.Hour)

	deviceRepo := repository.NewDeviceRepository(db)
	presentationRepo := repository.NewPresentationRepository(db)

	activity := service.NewActivityService(repository.NewActivityRepository(db), clock.Now, log)
	commands := service.NewCommandService(repository.NewCommandRepository(db), deviceRepo, activity, 10, 0, clock.Now, log)
	devices := service.NewDeviceService(deviceRepo, presentationRepo, commands, activity, cache.NopIndex{}, jwtService, presence.DefaultThresholds, clock.Now, log)
	reconcile := service.NewReconcileService(deviceRepo, activity, cache.NopIndex{}, presence.DefaultThresholds, service.ReconcileWindows{}, clock.Now, log)
	presentations := service.NewPresentationService(presentationRepo, deviceRepo)

	router := NewRouter(Handlers{
		Device:      NewDeviceHandler(devices, commands, presentations),
		Maintenance: NewMaintenanceHandler(reconcile),
		Admin:       NewAdminHandler(devices, commands, reconcile, activity),
	}, jwtService, log, nil)

	return &testServer{t: t, db: db, clock: clock, router: router}
}

// do 发送请求并解析 JSON 响应
func (s *testServer) do(method, path, deviceID string, body interface{}) (int, map[string]interface{}) {
	s.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			s.t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if deviceID != "" {
		req.Header.Set("X-Device-ID", deviceID)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			s.t.Fatalf("%s %s: invalid JSON %q", method, path, w.Body.String())
		}
	}
	return w.Code, out
}

// mustOK 断言请求成功
func (s *testServer) mustOK(method, path, deviceID string, body interface{}) map[string]interface{} {
	s.t.Helper()
	code, out := s.do(method, path, deviceID, body)
	if code != http.StatusOK && code != http.StatusCreated {
		s.t.Fatalf("%s %s = %d %v", method, path, code, out)
	}
	if out["success"] != true || out["server_time"] == nil {
		s.t.Fatalf("%s %s: missing success envelope: %v", method, path, out)
	}
	return out
}

// assertError 断言错误响应的状态码和格式
func assertError(t *testing.T, code int, out map[string]interface{}, want int) {
	t.Helper()
	if code != want {
		t.Fatalf("status = %d, want %d (%v)", code, want, out)
	}
	if _, ok := out["error"].(string); !ok || len(out) != 1 {
		t.Errorf("body = %v, want only an error message", out)
	}
}
