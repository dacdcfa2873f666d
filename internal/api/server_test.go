package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/misbah-png/My-Journal/internal/assistant"
	"github.com/misbah-png/My-Journal/internal/auth"
	"github.com/misbah-png/My-Journal/internal/calendar"
	"github.com/misbah-png/My-Journal/internal/domain"
	"github.com/misbah-png/My-Journal/internal/habits"
	"github.com/misbah-png/My-Journal/internal/security"
	"github.com/misbah-png/My-Journal/internal/store"
	"github.com/misbah-png/My-Journal/internal/tasks"
)

type fakeAssistant struct {
	reply string
	err   error
}

func (f fakeAssistant) Chat(ctx context.Context, messages []assistant.Message) (string, error) {
	return f.reply, f.err
}

func newTestServer(t *testing.T, chat chatClient) (*httptest.Server, store.Backend) {
	t.Helper()
	backend := store.NewMemoryStore()
	sessions := security.NewSessionManager(time.Hour)
	srv := New(Options{
		Backend:   backend,
		Calendar:  calendar.NewService(backend, nil),
		Habits:    habits.NewService(backend),
		Tasks:     tasks.NewService(backend),
		Auth:      auth.NewService(backend, sessions),
		Sessions:  sessions,
		Assistant: chat,
	})
	ts := httptest.NewServer(srv.httpSrv.Handler)
	t.Cleanup(ts.Close)
	return ts, backend
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func register(t *testing.T, ts *httptest.Server, email string) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/register", "", credentialsRequest{
		Email:    email,
		Password: "correct horse",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d", resp.StatusCode)
	}
	return decode[sessionResponse](t, resp).Token
}

func TestHealthNeedsNoAuth(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["store"] != "memory" {
		t.Fatalf("store = %q", body["store"])
	}
}

func TestAuthFlow(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	token := register(t, ts, "a@example.com")
	if token == "" {
		t.Fatal("empty session token")
	}

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/register", "", credentialsRequest{
		Email: "a@example.com", Password: "correct horse",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/auth/login", "", credentialsRequest{
		Email: "a@example.com", Password: "correct horse",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/auth/login", "", credentialsRequest{
		Email: "a@example.com", Password: "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	for _, path := range []string{"/v1/events", "/v1/habits", "/v1/tasks", "/v1/calendar.ics"} {
		resp := doJSON(t, http.MethodGet, ts.URL+path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: status %d", path, resp.StatusCode)
		}
	}
}

func TestEventLifecycle(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := register(t, ts, "a@example.com")

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/events/create", token, eventMutationRequest{
		Draft: domain.EventDraft{
			Title:  "Dentist",
			Start:  start,
			End:    start.Add(time.Hour),
			Repeat: domain.RepeatNone,
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	created := decode[[]domain.Event](t, resp)
	if len(created) != 1 || created[0].ID == "" {
		t.Fatalf("created = %+v", created)
	}
	id := created[0].ID

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/events", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	if events := decode[[]domain.Event](t, resp); len(events) != 1 {
		t.Fatalf("want 1 event, got %d", len(events))
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/events/draft?event_id="+id, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("draft: status %d", resp.StatusCode)
	}
	if draft := decode[domain.EventDraft](t, resp); draft.Title != "Dentist" {
		t.Fatalf("draft = %+v", draft)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/events/update", token, eventMutationRequest{
		EventID: id,
		Draft: domain.EventDraft{
			Title:  "Dentist (moved)",
			Start:  start.Add(time.Hour),
			End:    start.Add(2 * time.Hour),
			Repeat: domain.RepeatNone,
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status %d", resp.StatusCode)
	}
	if updated := decode[domain.Event](t, resp); updated.ID != id {
		t.Fatalf("update changed id: %+v", updated)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/events/delete", token, eventMutationRequest{EventID: id})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/events", token, nil)
	if events := decode[[]domain.Event](t, resp); len(events) != 0 {
		t.Fatalf("events after delete: %+v", events)
	}
}

func TestEventsAreScopedPerUser(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	tokenA := register(t, ts, "a@example.com")
	tokenB := register(t, ts, "b@example.com")

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/events/create", tokenA, eventMutationRequest{
		Draft: domain.EventDraft{Title: "Private", Start: start, End: start.Add(time.Hour), Repeat: domain.RepeatNone},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/events", tokenB, nil)
	if events := decode[[]domain.Event](t, resp); len(events) != 0 {
		t.Fatalf("user b sees user a's events: %+v", events)
	}
}

func TestEventRangeFilter(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := register(t, ts, "a@example.com")

	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		start := base.AddDate(0, 0, i*7)
		resp := doJSON(t, http.MethodPost, ts.URL+"/v1/events/create", token, eventMutationRequest{
			Draft: domain.EventDraft{Title: fmt.Sprintf("Week %d", i), Start: start, End: start.Add(time.Hour), Repeat: domain.RepeatNone},
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %d: status %d", i, resp.StatusCode)
		}
	}

	from := base.AddDate(0, 0, 3).Format(time.RFC3339)
	to := base.AddDate(0, 0, 10).Format(time.RFC3339)
	resp := doJSON(t, http.MethodGet, ts.URL+"/v1/events?from="+from+"&to="+to, token, nil)
	events := decode[[]domain.Event](t, resp)
	if len(events) != 1 || events[0].Title != "Week 1" {
		t.Fatalf("filtered = %+v", events)
	}
}

func TestDraftForSlotAndMissingEvent(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := register(t, ts, "a@example.com")

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	url := fmt.Sprintf("%s/v1/events/draft?start=%s&end=%s",
		ts.URL,
		start.Format(time.RFC3339),
		start.Add(time.Hour).Format(time.RFC3339))
	resp := doJSON(t, http.MethodGet, url, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("slot draft: status %d", resp.StatusCode)
	}
	draft := decode[domain.EventDraft](t, resp)
	if !draft.Start.Equal(start) || draft.Color != domain.DefaultColor {
		t.Fatalf("draft = %+v", draft)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/events/draft?event_id=nope", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing event draft: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/events/draft?start=junk", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad slot: status %d", resp.StatusCode)
	}
}

func TestCreateRejectsInvalidDraft(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := register(t, ts, "a@example.com")

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/events/create", token, eventMutationRequest{
		Draft: domain.EventDraft{Start: start, End: start.Add(time.Hour), Repeat: domain.RepeatNone},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing title: status %d", resp.StatusCode)
	}
}

// flakyRepo fails every Put after the first few, which is how a series save
// ends up half-written.
type flakyRepo struct {
	store.Backend
	limit int
	puts  int
}

func (f *flakyRepo) Put(ctx context.Context, userID string, e domain.Event) error {
	f.puts++
	if f.puts > f.limit {
		return errors.New("backend gone")
	}
	return f.Backend.Put(ctx, userID, e)
}

func TestSeriesSaveReportsPartialFailure(t *testing.T) {
	backend := store.NewMemoryStore()
	sessions := security.NewSessionManager(time.Hour)
	srv := New(Options{
		Backend:  backend,
		Calendar: calendar.NewService(&flakyRepo{Backend: backend, limit: 4}, nil),
		Habits:   habits.NewService(backend),
		Tasks:    tasks.NewService(backend),
		Auth:     auth.NewService(backend, sessions),
		Sessions: sessions,
	})
	ts := httptest.NewServer(srv.httpSrv.Handler)
	defer ts.Close()

	token := register(t, ts, "a@example.com")
	start := time.Now().UTC().Add(time.Hour)
	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/events/create", token, eventMutationRequest{
		Draft: domain.EventDraft{Title: "Standup", Start: start, End: start.Add(15 * time.Minute), Repeat: domain.RepeatDaily},
	})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[struct {
		Error    string   `json:"error"`
		SavedIDs []string `json:"saved_ids"`
	}](t, resp)
	if len(body.SavedIDs) != 4 {
		t.Fatalf("saved_ids = %v", body.SavedIDs)
	}
}

func TestHabitsRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := register(t, ts, "a@example.com")

	today := time.Now().UTC().Format("2006-01-02")
	payload := []domain.Habit{
		{ID: "h1", Name: "Read", Days: map[string]bool{today: true}},
		{ID: "h2", Name: "Run", Days: map[string]bool{}},
	}
	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/habits", token, payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save habits: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/habits", token, nil)
	if list := decode[[]domain.Habit](t, resp); len(list) != 2 {
		t.Fatalf("habits = %+v", list)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/habits/stats?date="+today, token, nil)
	stats := decode[habits.Stats](t, resp)
	if stats.Completed != 1 || stats.Total != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/habits/stats?date=junk", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad date: status %d", resp.StatusCode)
	}
}

func TestTasksRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := register(t, ts, "a@example.com")

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/tasks", token, []domain.Task{
		{ID: "t1", Text: "Buy milk", Category: "errands"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save tasks: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/tasks", token, []domain.Task{{ID: "t2"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid task accepted: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/tasks", token, nil)
	list := decode[[]domain.Task](t, resp)
	if len(list) != 1 || list[0].Text != "Buy milk" {
		t.Fatalf("tasks = %+v", list)
	}
}

func TestChat(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := register(t, ts, "a@example.com")

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/chat", token, chatRequest{
		Messages: []assistant.Message{{Role: "user", Content: "hi"}},
	})
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("unconfigured chat: status %d", resp.StatusCode)
	}

	ts2, _ := newTestServer(t, fakeAssistant{reply: "hello"})
	token2 := register(t, ts2, "a@example.com")
	resp = doJSON(t, http.MethodPost, ts2.URL+"/v1/chat", token2, chatRequest{
		Messages: []assistant.Message{{Role: "user", Content: "hi"}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat: status %d", resp.StatusCode)
	}
	if body := decode[map[string]string](t, resp); body["reply"] != "hello" {
		t.Fatalf("reply = %q", body["reply"])
	}
}

func TestICSFeed(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := register(t, ts, "a@example.com")

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/events/create", token, eventMutationRequest{
		Draft: domain.EventDraft{Title: "Dentist", Start: start, End: start.Add(time.Hour), Repeat: domain.RepeatNone},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/calendar.ics", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("feed: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("content type = %q", ct)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "BEGIN:VEVENT") {
		t.Fatalf("feed missing event:\n%s", data)
	}
}

func TestICSImport(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := register(t, ts, "a@example.com")

	doc := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
		"BEGIN:VEVENT",
		"UID:one",
		"SUMMARY:Imported",
		"DTSTART:20240601T090000Z",
		"DTEND:20240601T100000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n") + "\r\n"

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/calendar/import", strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("import: status %d", resp.StatusCode)
	}
	saved := decode[[]domain.Event](t, resp)
	if len(saved) != 1 || saved[0].Title != "Imported" || saved[0].ID == "" {
		t.Fatalf("saved = %+v", saved)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/events", token, nil)
	if events := decode[[]domain.Event](t, resp); len(events) != 1 {
		t.Fatalf("events after import: %+v", events)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := register(t, ts, "a@example.com")

	resp := doJSON(t, http.MethodDelete, ts.URL+"/v1/events", token, nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/auth/register", "", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
