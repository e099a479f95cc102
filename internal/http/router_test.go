package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/floreteng/bundld/internal/capture"
	"github.com/floreteng/bundld/internal/db"
	"github.com/floreteng/bundld/internal/inventory"
	"github.com/floreteng/bundld/internal/models"
	"github.com/floreteng/bundld/internal/rules"
	"github.com/floreteng/bundld/internal/security"
	"github.com/floreteng/bundld/internal/settings"
	"github.com/floreteng/bundld/internal/store"
)

const testSecret = "router-test-secret"

func setupRouterTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return conn
}

type noopCanceler struct{}

func (noopCanceler) Cancel(context.Context, string) error { return nil }

type noopDeliverer struct{}

func (noopDeliverer) DeliverAll(context.Context) error      { return nil }
func (noopDeliverer) MarkRead(context.Context, string) error { return nil }
func (noopDeliverer) Refresh(context.Context, string) error  { return nil }

type noopScheduler struct{ scheduleCalls int }

func (s *noopScheduler) ScheduleAll(context.Context) error { s.scheduleCalls++; return nil }
func (s *noopScheduler) CancelSchedule(uint64) error       { return nil }

func setupRouter(t *testing.T, conn *gorm.DB, ingestToken string) (*gin.Engine, *noopScheduler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	notifications := store.NewNotifications(conn)
	evaluator := rules.NewEvaluator(store.NewExemptions(conn), store.NewAppRules(conn))
	listener := capture.NewListener(evaluator, notifications, noopCanceler{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	listener.Start(ctx)

	settings.Store(time.Now(), nil)

	sched := &noopScheduler{}
	r := NewRouter(RouterDeps{
		DB:          conn,
		Listener:    listener,
		Apps:        inventory.New(nil),
		Deliverer:   noopDeliverer{},
		Scheduler:   sched,
		JWTSecret:   testSecret,
		JWTExpiry:   time.Hour,
		IngestToken: ingestToken,
	})
	return r, sched
}

func createTestAdmin(t *testing.T, conn *gorm.DB) string {
	t.Helper()
	hash, errHash := security.HashPassword("pass123")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	admin := models.Admin{Username: "ops", Password: hash, Active: true}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	token, errToken := security.GenerateAdminToken(testSecret, admin.ID, admin.Username, time.Hour)
	if errToken != nil {
		t.Fatalf("token: %v", errToken)
	}
	return token
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if errEncode := json.NewEncoder(&buf).Encode(body); errEncode != nil {
			t.Fatalf("encode body: %v", errEncode)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	conn := setupRouterTestDB(t)
	r, _ := setupRouter(t, conn, "")
	w := doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	conn := setupRouterTestDB(t)
	r, _ := setupRouter(t, conn, "")
	w := doJSON(t, r, http.MethodGet, "/v0/admin/app-rules", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/v0/admin/app-rules", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestLoginAndListAppRules(t *testing.T) {
	conn := setupRouterTestDB(t)
	r, _ := setupRouter(t, conn, "")
	createTestAdmin(t, conn)

	w := doJSON(t, r, http.MethodPost, "/v0/admin/auth/login", "", map[string]string{
		"username": "ops",
		"password": "pass123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	var loginResp struct {
		Token string `json:"token"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &loginResp); errDecode != nil || loginResp.Token == "" {
		t.Fatalf("login response: %v %s", errDecode, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/v0/admin/app-rules", loginResp.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	conn := setupRouterTestDB(t)
	r, _ := setupRouter(t, conn, "")
	createTestAdmin(t, conn)

	w := doJSON(t, r, http.MethodPost, "/v0/admin/auth/login", "", map[string]string{
		"username": "ops",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAppRuleCRUD(t *testing.T) {
	conn := setupRouterTestDB(t)
	r, _ := setupRouter(t, conn, "")
	token := createTestAdmin(t, conn)

	w := doJSON(t, r, http.MethodPost, "/v0/admin/app-rules", token, map[string]any{
		"package_name":  "com.example.chat",
		"mode":          "blacklist",
		"filter_string": "promo",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created struct {
		ID   uint64 `json:"id"`
		Mode string `json:"mode"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &created); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if created.ID == 0 || created.Mode != "blacklist" {
		t.Fatalf("created = %+v", created)
	}

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/v0/admin/app-rules/%d", created.ID), token, map[string]any{
		"package_name": "com.example.chat",
		"mode":         "whitelist",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/v0/admin/app-rules/%d", created.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", w.Code, w.Body.String())
	}

	rules, errList := store.NewAppRules(conn).List(context.Background())
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(rules) != 0 {
		t.Fatalf("rules left = %d, want 0", len(rules))
	}
}

func TestAppRuleCreateRejectsBadMode(t *testing.T) {
	conn := setupRouterTestDB(t)
	r, _ := setupRouter(t, conn, "")
	token := createTestAdmin(t, conn)

	w := doJSON(t, r, http.MethodPost, "/v0/admin/app-rules", token, map[string]any{
		"package_name": "com.example.chat",
		"mode":         "greylist",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestScheduleCreateTriggersReschedule(t *testing.T) {
	conn := setupRouterTestDB(t)
	r, sched := setupRouter(t, conn, "")
	token := createTestAdmin(t, conn)

	w := doJSON(t, r, http.MethodPost, "/v0/admin/schedules", token, map[string]any{
		"hour":         19,
		"minute":       30,
		"days_of_week": []int{1, 2, 3, 4, 5},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if sched.scheduleCalls != 1 {
		t.Fatalf("schedule calls = %d, want 1", sched.scheduleCalls)
	}

	w = doJSON(t, r, http.MethodPost, "/v0/admin/schedules", token, map[string]any{
		"hour":   25,
		"minute": 0,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestIngestSuppressPersists(t *testing.T) {
	conn := setupRouterTestDB(t)
	r, _ := setupRouter(t, conn, "")

	rule := models.AppRule{PackageName: "com.example.chat", Mode: models.RuleModeBlacklist}
	if errCreate := conn.Create(&rule).Error; errCreate != nil {
		t.Fatalf("create rule: %v", errCreate)
	}

	w := doJSON(t, r, http.MethodPost, "/v0/ingest/events", "", map[string]any{
		"package_name": "com.example.chat",
		"title":        "Hello",
		"text":         "New message",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Decision string `json:"decision"`
		Captured bool   `json:"captured"`
		Key      string `json:"key"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if resp.Decision != "suppress" || !resp.Captured || resp.Key == "" {
		t.Fatalf("resp = %+v", resp)
	}

	pending, errPending := store.NewNotifications(conn).Pending(context.Background())
	if errPending != nil {
		t.Fatalf("pending: %v", errPending)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
}

func TestIngestAllowWithoutRules(t *testing.T) {
	conn := setupRouterTestDB(t)
	r, _ := setupRouter(t, conn, "")

	w := doJSON(t, r, http.MethodPost, "/v0/ingest/events", "", map[string]any{
		"package_name": "com.example.other",
		"title":        "Hi",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Decision string `json:"decision"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if resp.Decision != "allow" {
		t.Fatalf("decision = %q, want allow", resp.Decision)
	}
}

func TestIngestTokenEnforced(t *testing.T) {
	conn := setupRouterTestDB(t)
	r, _ := setupRouter(t, conn, "bridge-token")

	w := doJSON(t, r, http.MethodPost, "/v0/ingest/events", "", map[string]any{
		"package_name": "com.example.chat",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/v0/ingest/events", "bridge-token", map[string]any{
		"package_name": "com.example.chat",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	conn := setupRouterTestDB(t)
	r, _ := setupRouter(t, conn, "")
	token := createTestAdmin(t, conn)

	enabled := false
	retention := 14
	w := doJSON(t, r, http.MethodPut, "/v0/admin/settings", token, map[string]any{
		"bundling_enabled": enabled,
		"retention_days":   retention,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/v0/admin/settings", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var resp struct {
		BundlingEnabled bool `json:"bundling_enabled"`
		RetentionDays   int  `json:"retention_days"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if resp.BundlingEnabled || resp.RetentionDays != 14 {
		t.Fatalf("resp = %+v", resp)
	}
}
