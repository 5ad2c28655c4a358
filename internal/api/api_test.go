package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/navigate-learning/navigate/internal/app/account"
	"github.com/navigate-learning/navigate/internal/app/assist"
	"github.com/navigate-learning/navigate/internal/app/booking"
	"github.com/navigate-learning/navigate/internal/app/rewards"
	"github.com/navigate-learning/navigate/internal/app/tracker"
	"github.com/navigate-learning/navigate/internal/health"
	"github.com/navigate-learning/navigate/internal/infra/sqlite"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := func() time.Time { return time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC) }

	ledger := rewards.NewLedger(db, rewards.DefaultRules(), time.UTC)
	ledger.SetClock(clock)
	accounts := account.NewService(db, db, ledger, account.Config{
		Secret:     "test-secret",
		BcryptCost: bcrypt.MinCost,
	})
	track := tracker.NewService(db, ledger)
	track.SetClock(clock)
	book := booking.NewService(db, accounts, track, time.UTC)
	book.SetClock(clock)
	checker := health.NewChecker(dir, db)
	checker.RunOnce(context.Background())

	return NewServer(Services{
		Accounts: accounts,
		Ledger:   ledger,
		Tracker:  track,
		Booking:  book,
		Assist:   assist.NewService(db),
		Health:   checker,
	})
}

// do runs one request against h and returns the recorder.
func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

// login signs up and signs in ada, returning the bearer token.
func login(t *testing.T, h http.Handler) string {
	t.Helper()
	w := do(t, h, "POST", "/api/auth/signup", "", `{"username":"ada","email":"ada@example.com","password":"s3cret!"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body: %s", w.Code, w.Body.String())
	}
	w = do(t, h, "POST", "/api/auth/signin", "", `{"login":"ada","password":"s3cret!"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("signin status = %d, body: %s", w.Code, w.Body.String())
	}
	token, _ := decodeBody(t, w)["access_token"].(string)
	if token == "" {
		t.Fatal("signin returned no access_token")
	}
	return token
}

// ─── Health Check ───────────────────────────────────────────────────────────

func TestAPI_Health(t *testing.T) {
	h := newTestServer(t).Handler()
	w := do(t, h, "GET", "/health", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := decodeBody(t, w); body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestAPI_Version(t *testing.T) {
	h := newTestServer(t).Handler()
	if w := do(t, h, "GET", "/api/version", "", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAPI_MetricsDisabledByDefault(t *testing.T) {
	srv := newTestServer(t)
	if w := do(t, srv.Handler(), "GET", "/metrics", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	srv.EnableMetrics()
	if w := do(t, srv.Handler(), "GET", "/metrics", "", ""); w.Code != http.StatusOK {
		t.Errorf("enabled status = %d, want 200", w.Code)
	}
}

// ─── Auth ───────────────────────────────────────────────────────────────────

func TestAPI_SignupValidation(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, "POST", "/api/auth/signup", "", `{"username":"ada","email":"nope","password":"s3cret!"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad email status = %d, want 400", w.Code)
	}
	errBody, _ := decodeBody(t, w)["error"].(map[string]interface{})
	if errBody["type"] != "invalid_request" || !strings.Contains(errBody["message"].(string), "email") {
		t.Errorf("error = %v", errBody)
	}

	login(t, h)
	w = do(t, h, "POST", "/api/auth/signup", "", `{"username":"ADA","email":"x@example.com","password":"s3cret!"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", w.Code)
	}
}

func TestAPI_SigninWrongPassword(t *testing.T) {
	h := newTestServer(t).Handler()
	login(t, h)
	w := do(t, h, "POST", "/api/auth/signin", "", `{"login":"ada","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAPI_AuthRequired(t *testing.T) {
	h := newTestServer(t).Handler()
	for _, path := range []string{"/api/rewards", "/api/auth/me", "/api/dashboard", "/api/sessions"} {
		if w := do(t, h, "GET", path, "", ""); w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, w.Code)
		}
	}
	if w := do(t, h, "GET", "/api/rewards", "garbage", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", w.Code)
	}
}

func TestAPI_MeAndLogout(t *testing.T) {
	h := newTestServer(t).Handler()
	token := login(t, h)

	w := do(t, h, "GET", "/api/auth/me", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d", w.Code)
	}
	me := decodeBody(t, w)
	if me["username"] != "ada" {
		t.Errorf("me = %v", me)
	}
	if _, leaked := me["password_hash"]; leaked {
		t.Error("password hash must not be serialized")
	}

	if w := do(t, h, "POST", "/api/auth/logout", token, ""); w.Code != http.StatusOK {
		t.Errorf("logout status = %d", w.Code)
	}
	if w := do(t, h, "GET", "/api/auth/me", token, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("me after logout status = %d, want 401", w.Code)
	}
}

// ─── Rewards ────────────────────────────────────────────────────────────────

func TestAPI_Catalog(t *testing.T) {
	h := newTestServer(t).Handler()

	store := decodeBody(t, do(t, h, "GET", "/api/rewards/store", "", ""))
	if items, _ := store["items"].([]interface{}); len(items) != 5 {
		t.Errorf("store items = %d, want 5", len(items))
	}
	tiers := decodeBody(t, do(t, h, "GET", "/api/rewards/tiers", "", ""))
	if list, _ := tiers["tiers"].([]interface{}); len(list) != 7 {
		t.Errorf("tiers = %d, want 7", len(list))
	}
	ach := decodeBody(t, do(t, h, "GET", "/api/rewards/achievements", "", ""))
	if list, _ := ach["achievements"].([]interface{}); len(list) != 12 {
		t.Errorf("achievements = %d, want 12", len(list))
	}
}

func TestAPI_SigninAwardsDailyLogin(t *testing.T) {
	h := newTestServer(t).Handler()
	token := login(t, h)

	body := decodeBody(t, do(t, h, "GET", "/api/rewards", token, ""))
	state, _ := body["state"].(map[string]interface{})
	if state["totalPoints"] != float64(5) {
		t.Errorf("totalPoints = %v, want 5", state["totalPoints"])
	}
	if body["available"] != float64(5) {
		t.Errorf("available = %v, want 5", body["available"])
	}
}

func TestAPI_EventsAndRedeem(t *testing.T) {
	h := newTestServer(t).Handler()
	token := login(t, h)

	w := do(t, h, "POST", "/api/rewards/events", token, `{"event":"challenge_completed","meta":{"points":100}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("event status = %d, body: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["points"]; got != float64(100) {
		t.Errorf("points = %v, want 100", got)
	}

	if w := do(t, h, "POST", "/api/rewards/events", token, `{"event":"party"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown event status = %d, want 400", w.Code)
	}
	if w := do(t, h, "POST", "/api/rewards/events", token, `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing event status = %d, want 400", w.Code)
	}

	w = do(t, h, "POST", "/api/rewards/redeem", token, `{"item_id":"badge_custom_100"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("redeem status = %d, body: %s", w.Code, w.Body.String())
	}
	if res := decodeBody(t, w); res["ok"] != true {
		t.Errorf("redeem = %v", res)
	}

	w = do(t, h, "POST", "/api/rewards/redeem", token, `{"item_id":"badge_custom_100"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("double redeem status = %d, want 409", w.Code)
	}
	if res := decodeBody(t, w); res["reason"] != "already_owned" {
		t.Errorf("double redeem reason = %v", res["reason"])
	}

	w = do(t, h, "POST", "/api/rewards/redeem", token, `{"item_id":"profile_theme_500"}`)
	if res := decodeBody(t, w); w.Code != http.StatusConflict || res["reason"] != "insufficient_points" {
		t.Errorf("expensive redeem = %d %v", w.Code, res)
	}

	if w := do(t, h, "POST", "/api/rewards/redeem", token, `{"item_id":"yacht"}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown item status = %d, want 404", w.Code)
	}

	body := decodeBody(t, do(t, h, "GET", "/api/rewards", token, ""))
	if body["available"] != float64(5) {
		t.Errorf("available = %v, want 5", body["available"])
	}
}

func TestAPI_EventsRejectOutOfRangeMeta(t *testing.T) {
	h := newTestServer(t).Handler()
	token := login(t, h)

	bodies := []string{
		`{"event":"challenge_completed","meta":{"points":9223372036854775807}}`,
		`{"event":"challenge_completed","meta":{"points":1001}}`,
		`{"event":"challenge_completed","meta":{"points":-5}}`,
		`{"event":"quiz_completed","meta":{"score":-40}}`,
		`{"event":"quiz_completed","meta":{"score":150}}`,
	}
	for _, b := range bodies {
		if w := do(t, h, "POST", "/api/rewards/events", token, b); w.Code != http.StatusBadRequest {
			t.Errorf("POST %s status = %d, want 400", b, w.Code)
		}
	}

	w := do(t, h, "POST", "/api/rewards/events", token, `{"event":"challenge_completed","meta":{"points":1000}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("max challenge status = %d, body: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, do(t, h, "GET", "/api/rewards", token, ""))
	state, _ := body["state"].(map[string]interface{})
	if state["totalPoints"] != float64(1005) {
		t.Errorf("totalPoints = %v, want 1005 (login + capped challenge)", state["totalPoints"])
	}
	counts, _ := state["counts"].(map[string]interface{})
	if counts["quizzes"] != float64(0) {
		t.Errorf("quizzes = %v, rejected events must not count", counts["quizzes"])
	}
}

func TestAPI_History(t *testing.T) {
	h := newTestServer(t).Handler()
	token := login(t, h)
	do(t, h, "POST", "/api/rewards/events", token, `{"event":"video_watched"}`)
	do(t, h, "POST", "/api/rewards/events", token, `{"event":"quiz_completed","meta":{"score":85}}`)

	body := decodeBody(t, do(t, h, "GET", "/api/rewards/history?limit=2", token, ""))
	hist, _ := body["history"].([]interface{})
	if len(hist) != 2 {
		t.Fatalf("history len = %d, want 2", len(hist))
	}
	newest, _ := hist[0].(map[string]interface{})
	if newest["type"] != "quiz" {
		t.Errorf("newest = %v, want quiz", newest)
	}

	if w := do(t, h, "GET", "/api/rewards/history?limit=x", token, ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}
}

func TestAPI_RewardsLive(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()
	token := login(t, ts.Config.Handler)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/rewards/live?token="+token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("live request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	rd := bufio.NewReader(resp.Body)
	if line, _ := rd.ReadString('\n'); !strings.HasPrefix(line, ": connected") {
		t.Fatalf("first line = %q", line)
	}

	w := do(t, ts.Config.Handler, "POST", "/api/rewards/events", token, `{"event":"lesson_completed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("event status = %d", w.Code)
	}

	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended before update: %v", err)
		}
		if strings.HasPrefix(line, "event: updated") {
			data, _ := rd.ReadString('\n')
			if !strings.HasPrefix(data, "data: ") || !strings.Contains(data, "award") {
				t.Errorf("data line = %q", data)
			}
			return
		}
	}
}

// ─── Activity & Sessions ────────────────────────────────────────────────────

func TestAPI_ActivityAndDashboard(t *testing.T) {
	h := newTestServer(t).Handler()
	token := login(t, h)

	w := do(t, h, "POST", "/api/activity/lessons/us-1/complete", token, `{"title":"Colonial America","subject":"us-history"}`)
	if body := decodeBody(t, w); body["counted"] != true {
		t.Errorf("first completion = %v", body)
	}
	w = do(t, h, "POST", "/api/activity/lessons/us-1/complete", token, `{"title":"Colonial America","subject":"us-history"}`)
	if body := decodeBody(t, w); body["counted"] != false {
		t.Errorf("repeat completion = %v", body)
	}

	do(t, h, "POST", "/api/activity/videos/v1", token, `{"title":"Rome","no_skip":true}`)
	w = do(t, h, "POST", "/api/activity/quizzes/q1", token, `{"title":"Unit 1","score":0,"total_questions":10}`)
	if w.Code != http.StatusOK {
		t.Errorf("quiz score 0 status = %d, body: %s", w.Code, w.Body.String())
	}
	if w := do(t, h, "POST", "/api/activity/quizzes/q1", token, `{"title":"Unit 1","score":101}`); w.Code != http.StatusBadRequest {
		t.Errorf("quiz score 101 status = %d, want 400", w.Code)
	}
	do(t, h, "POST", "/api/activity/downloads", token, `{"title":"Timeline"}`)
	if w := do(t, h, "POST", "/api/activity/studytime", token, `{"minutes":0}`); w.Code != http.StatusBadRequest {
		t.Errorf("zero study time status = %d, want 400", w.Code)
	}

	dash := decodeBody(t, do(t, h, "GET", "/api/dashboard", token, ""))
	if dash["lessons_completed"] != float64(1) || dash["videos_watched"] != float64(1) || dash["quizzes_taken"] != float64(1) {
		t.Errorf("dashboard = %v", dash)
	}

	recent := decodeBody(t, do(t, h, "GET", "/api/activity/recent?limit=2", token, ""))
	if list, _ := recent["activity"].([]interface{}); len(list) != 2 {
		t.Errorf("recent len = %d, want 2", len(list))
	}
}

func TestAPI_Sessions(t *testing.T) {
	h := newTestServer(t).Handler()
	token := login(t, h)

	w := do(t, h, "POST", "/api/sessions", token, `{"subject":"world-history","date":"2025-04-11","time":"16:00"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("book status = %d, body: %s", w.Code, w.Body.String())
	}
	b := decodeBody(t, w)
	id, _ := b["id"].(string)
	if link, _ := b["meet_link"].(string); !strings.HasPrefix(link, "meet.google.com/") {
		t.Errorf("meet_link = %q", link)
	}

	if w := do(t, h, "POST", "/api/sessions", token, `{"subject":"world-history","date":"2025-04-01","time":"16:00"}`); w.Code != http.StatusBadRequest {
		t.Errorf("past booking status = %d, want 400", w.Code)
	}

	list := decodeBody(t, do(t, h, "GET", "/api/sessions", token, ""))
	if sessions, _ := list["sessions"].([]interface{}); len(sessions) != 1 {
		t.Errorf("sessions = %v", list)
	}

	w = do(t, h, "POST", "/api/sessions/"+id+"/attend", token, `{"minutes":45}`)
	if w.Code != http.StatusOK || decodeBody(t, w)["attended"] != true {
		t.Errorf("attend status = %d", w.Code)
	}
	if w := do(t, h, "POST", "/api/sessions/nope/attend", token, `{"minutes":45}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown booking status = %d, want 404", w.Code)
	}

	dash := decodeBody(t, do(t, h, "GET", "/api/dashboard", token, ""))
	if dash["sessions_attended"] != float64(1) || dash["total_study_time"] != float64(45) {
		t.Errorf("dashboard = %v", dash)
	}
}

func TestAPI_GuestBooking(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, "POST", "/api/sessions/guest", "", `{"name":"Sam","email":"sam@example.com","subject":"us-history","date":"2025-04-10","time":"18:00"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("guest today status = %d, body: %s", w.Code, w.Body.String())
	}
	if b := decodeBody(t, w); b["guest"] != true {
		t.Errorf("booking = %v", b)
	}

	w = do(t, h, "POST", "/api/sessions/guest", "", `{"name":"Sam","email":"sam@example.com","subject":"us-history","date":"2025-04-12","time":"18:00"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("guest future status = %d, want 400", w.Code)
	}
}

// ─── Assistant ──────────────────────────────────────────────────────────────

func TestAPI_Assistant(t *testing.T) {
	h := newTestServer(t).Handler()

	hist := decodeBody(t, do(t, h, "GET", "/api/assistant/c1", "", ""))
	msgs, _ := hist["messages"].([]interface{})
	if len(msgs) != 1 {
		t.Fatalf("new conversation messages = %d, want greeting", len(msgs))
	}

	w := do(t, h, "POST", "/api/assistant/c1", "", `{"text":"where are the resources?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("send status = %d", w.Code)
	}
	reply := decodeBody(t, w)
	if text, _ := reply["text"].(string); !strings.Contains(text, "Resources page") {
		t.Errorf("reply = %v", reply)
	}
	if reply["from"] != "bot" {
		t.Errorf("from = %v, want bot", reply["from"])
	}
}
