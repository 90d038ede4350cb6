package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pastrio/cfg"
	"pastrio/svc/auth"
	"pastrio/svc/db"
	"pastrio/svc/lim"
	"pastrio/svc/session"
	"pastrio/svc/svc"
)

var memdbSeq int64

func testServer(t *testing.T) *Server {
	return testServerCfg(t, nil)
}

func testServerCfg(t *testing.T, mutate func(*cfg.Cfg)) *Server {
	t.Helper()
	n := atomic.AddInt64(&memdbSeq, 1)
	dsn := fmt.Sprintf("file:apidb%d?mode=memory&cache=shared", n)
	store, err := db.NewStoreWithConfig(dsn, 4, 2, 5*time.Second)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	c := &cfg.Cfg{
		Port:           "0",
		Environment:    "test",
		HashLength:     6,
		MaxPasteSize:   512 * 1024,
		SessionTTL:     time.Hour,
		SessionSecret:  cfg.NewSecret("test-cookie-signing-secret"),
		ContextTimeout: 10 * time.Second,
		RateLimit:      cfg.RateLimitCfg{RPM: 100000, Burst: 100000},
	}
	if mutate != nil {
		mutate(c)
	}

	sessions, err := session.NewMemoryStore(64)
	if err != nil {
		t.Fatalf("session store failed: %v", err)
	}
	hasher, err := auth.NewHasher(1, 8*1024, 1, 32, nil)
	if err != nil {
		t.Fatalf("hasher failed: %v", err)
	}
	pasteSvc := svc.NewPaste(store, c)
	authSvc := svc.NewAuth(store, sessions, hasher, c.SessionTTL)
	limiter := lim.New(c.RateLimit.RPM, c.RateLimit.Burst, nil, nil)
	t.Cleanup(limiter.Stop)

	return NewServer(c, pasteSvc, authSvc, limiter, store, nil)
}

func createPaste(t *testing.T, s *Server, body string) (status int, resp map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/paste/create", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	resp = map[string]any{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("create returned non-JSON body %q: %v", w.Body.String(), err)
	}
	return w.Code, resp
}

func TestCreateAndViewFlow(t *testing.T) {
	s := testServer(t)

	status, resp := createPaste(t, s, `{"content":"hello from the api"}`)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, want 201 (%v)", status, resp)
	}
	if resp["success"] != true {
		t.Errorf("success = %v", resp["success"])
	}
	hash, _ := resp["hash"].(string)
	if len(hash) != 6 {
		t.Errorf("hash = %q", hash)
	}
	if resp["url"] != "/"+hash {
		t.Errorf("url = %v, want /%s", resp["url"], hash)
	}
	if resp["message"] != "Paste created successfully" {
		t.Errorf("message = %v", resp["message"])
	}

	req := httptest.NewRequest(http.MethodGet, "/"+hash, nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("view status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("view content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "hello from the api") {
		t.Error("rendered page does not contain the paste body")
	}
}

func TestCreateFromHTMLForm(t *testing.T) {
	s := testServer(t)

	form := url.Values{
		"content":        {"hello from the form"},
		"expirationTime": {"10"},
		"expirationUnit": {"minutes"},
		"maxViews":       {"2"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/paste/create", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("form create status = %d, body %q, want 201", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("non-JSON create body: %v", err)
	}
	hash, _ := resp["hash"].(string)
	if len(hash) != 6 {
		t.Fatalf("hash = %q", hash)
	}

	req = httptest.NewRequest(http.MethodGet, "/"+hash, nil)
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("view status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "hello from the form") {
		t.Error("form-created paste not served")
	}
}

func TestCreateFormEmptyOptionalFields(t *testing.T) {
	s := testServer(t)

	// The index form submits empty strings when the user leaves the expiry
	// and view-cap inputs blank; both mean "no limit".
	form := url.Values{
		"content":        {"no limits"},
		"expirationTime": {""},
		"expirationUnit": {""},
		"maxViews":       {""},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/paste/create", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %q, want 201", w.Code, w.Body.String())
	}
}

func TestCreateFormMalformedNumbers(t *testing.T) {
	s := testServer(t)
	for _, field := range []string{"expirationTime", "maxViews"} {
		form := url.Values{"content": {"x"}, field: {"three"}}
		req := httptest.NewRequest(http.MethodPost, "/api/paste/create", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		s.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("non-numeric %s: status = %d, want 400", field, w.Code)
		}
	}
}

func TestCreateURLUsesBaseURL(t *testing.T) {
	s := testServerCfg(t, func(c *cfg.Cfg) {
		c.BaseURL = "https://paste.example.com"
	})
	status, resp := createPaste(t, s, `{"content":"absolute links"}`)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}
	hash := resp["hash"].(string)
	if resp["url"] != "https://paste.example.com/"+hash {
		t.Errorf("url = %v, want base-prefixed", resp["url"])
	}
}

func TestCreateValidationErrors(t *testing.T) {
	s := testServer(t)
	cases := []struct {
		name    string
		body    string
		message string
	}{
		{"empty content", `{"content":"   "}`, "Content is required"},
		{"missing content", `{}`, "Content is required"},
		{"bad unit", `{"content":"x","expirationTime":5,"expirationUnit":"eons"}`, "Invalid expiration unit"},
		{"zero max views", `{"content":"x","maxViews":0}`, "Invalid request"},
		{"malformed json", `{"content":`, "Invalid request"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			status, resp := createPaste(t, s, c.body)
			if status != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", status)
			}
			if resp["success"] != false {
				t.Errorf("success = %v, want false", resp["success"])
			}
			if resp["message"] != c.message {
				t.Errorf("message = %q, want %q", resp["message"], c.message)
			}
		})
	}
}

func TestViewUnknownHash(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/zzzzzz", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("HTML view status = %d, want 404", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/paste/zzzzzz/json", nil)
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("JSON view status = %d, want 404", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("non-JSON 404 body: %v", err)
	}
	if resp["success"] != false {
		t.Errorf("success = %v", resp["success"])
	}
}

func TestViewCapOverHTTP(t *testing.T) {
	s := testServer(t)
	_, resp := createPaste(t, s, `{"content":"burn after reading","maxViews":1}`)
	hash := resp["hash"].(string)

	req := httptest.NewRequest(http.MethodGet, "/"+hash, nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first view status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "burn after reading") {
		t.Error("capping view not served in full")
	}

	req = httptest.NewRequest(http.MethodGet, "/"+hash, nil)
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("second view status = %d, want 404", w.Code)
	}
}

func TestJSONEndpointDoesNotCount(t *testing.T) {
	s := testServer(t)
	_, resp := createPaste(t, s, `{"content":"inspect me","maxViews":1}`)
	hash := resp["hash"].(string)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/paste/"+hash+"/json", nil)
		w := httptest.NewRecorder()
		s.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("json read %d status = %d", i, w.Code)
		}
		var body struct {
			Success bool `json:"success"`
			Data    struct {
				Hash    string `json:"hash"`
				Content string `json:"content"`
				Views   int    `json:"views"`
			} `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("bad json body: %v", err)
		}
		if body.Data.Views != 0 {
			t.Errorf("json read %d incremented views to %d", i, body.Data.Views)
		}
		if body.Data.Content != "inspect me" {
			t.Errorf("content = %q", body.Data.Content)
		}
	}
}

func registerUser(t *testing.T, s *Server, username, password string) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("register status = %d, body %q", w.Code, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == "sid" && c.Value != "" {
			return c
		}
	}
	t.Fatal("register set no session cookie")
	return nil
}

func TestRegisterLoginLogoutOverHTTP(t *testing.T) {
	s := testServer(t)
	cookie := registerUser(t, s, "alice", "a strong password")
	if !cookie.HttpOnly {
		t.Error("session cookie not HttpOnly")
	}

	// Authenticated /api/me.
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("/api/me status = %d, body %q", w.Code, w.Body.String())
	}
	var me struct {
		Success bool `json:"success"`
		Data    struct {
			UserID   int64  `json:"userId"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &me); err != nil {
		t.Fatalf("bad /api/me body: %v", err)
	}
	if me.Data.Username != "alice" || me.Data.UserID == 0 {
		t.Errorf("unexpected /api/me payload: %+v", me.Data)
	}

	// Logout destroys the session.
	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("logout status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("/api/me after logout = %d, want 401", w.Code)
	}

	// Login restores access with a new cookie.
	form := url.Values{"username": {"alice"}, "password": {"a strong password"}}
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d, body %q", w.Code, w.Body.String())
	}
}

func TestRequireAuthContentNegotiation(t *testing.T) {
	s := testServer(t)

	// API clients get a JSON 401.
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("JSON client status = %d, want 401", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("401 body is not JSON: %v", err)
	}
	if resp["success"] != false {
		t.Errorf("success = %v", resp["success"])
	}

	// Browser clients get redirected to the login page.
	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusSeeOther {
		t.Errorf("browser client status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("redirect location = %q, want /login", loc)
	}
}

func TestTamperedSessionCookieRejected(t *testing.T) {
	s := testServer(t)
	cookie := registerUser(t, s, "eve", "a strong password")

	forged := &http.Cookie{Name: "sid", Value: cookie.Value[:len(cookie.Value)-2] + "xx"}
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(forged)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("tampered cookie accepted: status = %d", w.Code)
	}
}

func TestLoginBadCredentialsRerendersForm(t *testing.T) {
	s := testServer(t)
	form := url.Values{"username": {"ghost"}, "password": {"whatever else"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid credentials") {
		t.Error("form not re-rendered with the error")
	}
}

func TestRegisterDuplicateRerendersForm(t *testing.T) {
	s := testServer(t)
	registerUser(t, s, "carol", "a strong password")

	form := url.Values{"username": {"carol"}, "password": {"another password"}}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Username already taken") {
		t.Error("duplicate error not shown")
	}
}

func TestHealthAndReady(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("/health status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("/ready status = %d", w.Code)
	}
	var ready ReadyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &ready); err != nil {
		t.Fatalf("bad ready body: %v", err)
	}
	if ready.Sessions != "memory" {
		t.Errorf("sessions backend = %q, want memory", ready.Sessions)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("index status = %d", w.Code)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}

func TestPasteBodyEscapedInHTML(t *testing.T) {
	s := testServer(t)
	payload := map[string]string{"content": `<script>alert("xss")</script>`}
	buf, _ := json.Marshal(payload)
	status, resp := createPaste(t, s, string(bytes.TrimSpace(buf)))
	if status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}
	hash := resp["hash"].(string)

	req := httptest.NewRequest(http.MethodGet, "/"+hash, nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if strings.Contains(w.Body.String(), "<script>") {
		t.Error("paste body rendered unescaped")
	}
}
