package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/misbah-png/My-Journal/internal/assistant"
	"github.com/misbah-png/My-Journal/internal/auth"
	"github.com/misbah-png/My-Journal/internal/calendar"
	"github.com/misbah-png/My-Journal/internal/domain"
	"github.com/misbah-png/My-Journal/internal/habits"
	"github.com/misbah-png/My-Journal/internal/icsfeed"
	"github.com/misbah-png/My-Journal/internal/security"
	"github.com/misbah-png/My-Journal/internal/store"
	"github.com/misbah-png/My-Journal/internal/tasks"
)

type chatClient interface {
	Chat(ctx context.Context, messages []assistant.Message) (string, error)
}

type Server struct {
	backend   store.Backend
	calendar  *calendar.Service
	habits    *habits.Service
	tasks     *tasks.Service
	auth      *auth.Service
	sessions  *security.SessionManager
	assistant chatClient
	log       *slog.Logger
	httpSrv   *http.Server
}

type Options struct {
	Backend   store.Backend
	Calendar  *calendar.Service
	Habits    *habits.Service
	Tasks     *tasks.Service
	Auth      *auth.Service
	Sessions  *security.SessionManager
	Assistant chatClient
	Logger    *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		backend:   opts.Backend,
		calendar:  opts.Calendar,
		habits:    opts.Habits,
		tasks:     opts.Tasks,
		auth:      opts.Auth,
		sessions:  opts.Sessions,
		assistant: opts.Assistant,
		log:       logger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/auth/register", s.handleRegister)
	mux.HandleFunc("/v1/auth/login", s.handleLogin)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/events/draft", s.handleEventDraft)
	mux.HandleFunc("/v1/events/create", s.handleCreateEvent)
	mux.HandleFunc("/v1/events/update", s.handleUpdateEvent)
	mux.HandleFunc("/v1/events/delete", s.handleDeleteEvent)
	mux.HandleFunc("/v1/habits", s.handleHabits)
	mux.HandleFunc("/v1/habits/stats", s.handleHabitStats)
	mux.HandleFunc("/v1/tasks", s.handleTasks)
	mux.HandleFunc("/v1/chat", s.handleChat)
	mux.HandleFunc("/v1/calendar.ics", s.handleICSFeed)
	mux.HandleFunc("/v1/calendar/import", s.handleICSImport)
	s.httpSrv = &http.Server{Handler: s.wrapAuth(mux), ReadHeaderTimeout: 5 * time.Second}
	return s
}

func (s *Server) ServeTCP(ctx context.Context, bind string) error {
	if bind == "" {
		return errors.New("bind required")
	}
	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	go s.shutdownOnContext(ctx)
	return s.httpSrv.Serve(ln)
}

func (s *Server) ServeUnix(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("socket path required")
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return err
	}
	go s.shutdownOnContext(ctx)
	return s.httpSrv.Serve(ln)
}

func (s *Server) shutdownOnContext(ctx context.Context) {
	<-ctx.Done()
	timeout, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = s.httpSrv.Shutdown(timeout)
}

type ctxKey int

const userIDKey ctxKey = iota

// wrapAuth resolves the session token into a user id for every route except
// the health check and the auth endpoints themselves. Requests without a
// valid identity never reach a user-scoped handler.
func (s *Server) wrapAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || strings.HasPrefix(r.URL.Path, "/v1/auth/") {
			next.ServeHTTP(w, r)
			return
		}
		userID, ok := s.sessions.Resolve(security.TokenFromRequest(r))
		if !ok {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func requestUser(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": s.backend.Name()})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	user, token, err := s.auth.Register(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			writeErr(w, http.StatusConflict, err.Error())
			return
		}
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, UserID: user.ID, Email: user.Email})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	user, token, err := s.auth.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeErr(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, UserID: user.ID, Email: user.Email})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	events, err := s.calendar.Events(r.Context(), requestUser(r))
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	from, _ := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	to, _ := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if from.IsZero() && to.IsZero() {
		writeJSON(w, http.StatusOK, events)
		return
	}
	filtered := make([]domain.Event, 0, len(events))
	for _, e := range events {
		if !from.IsZero() && e.End.Before(from) {
			continue
		}
		if !to.IsZero() && e.Start.After(to) {
			continue
		}
		filtered = append(filtered, e)
	}
	writeJSON(w, http.StatusOK, filtered)
}

// handleEventDraft prefills the editing form: ?event_id= loads an existing
// record with its title marker split out, otherwise ?start=&end= prefills a
// creation draft for the selected slot.
func (s *Server) handleEventDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if eventID := r.URL.Query().Get("event_id"); eventID != "" {
		events, err := s.calendar.Events(r.Context(), requestUser(r))
		if err != nil {
			writeErr(w, http.StatusBadGateway, err.Error())
			return
		}
		for _, e := range events {
			if e.ID == eventID {
				writeJSON(w, http.StatusOK, s.calendar.DraftForEvent(e))
				return
			}
		}
		writeErr(w, http.StatusNotFound, "event not found")
		return
	}
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid start")
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid end")
		return
	}
	writeJSON(w, http.StatusOK, s.calendar.DraftForSlot(calendar.Slot{Start: start, End: end}))
}

type eventMutationRequest struct {
	EventID string            `json:"event_id"`
	Draft   domain.EventDraft `json:"draft"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload eventMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	saved, err := s.calendar.Create(r.Context(), requestUser(r), payload.Draft)
	if err != nil {
		s.writeCalendarErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload eventMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	updated, err := s.calendar.Update(r.Context(), requestUser(r), payload.EventID, payload.Draft)
	if err != nil {
		s.writeCalendarErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload eventMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.calendar.Delete(r.Context(), requestUser(r), payload.EventID); err != nil {
		s.writeCalendarErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"event_id": payload.EventID})
}

func (s *Server) writeCalendarErr(w http.ResponseWriter, err error) {
	var verr calendar.ValidationError
	if errors.As(err, &verr) {
		writeErr(w, http.StatusBadRequest, verr.Error())
		return
	}
	var perr *calendar.PartialSaveError
	if errors.As(err, &perr) {
		ids := make([]string, 0, len(perr.Saved))
		for _, e := range perr.Saved {
			ids = append(ids, e.ID)
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":     perr.Error(),
			"saved_ids": ids,
		})
		return
	}
	writeErr(w, http.StatusBadGateway, err.Error())
}

func (s *Server) handleHabits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.habits.List(r.Context(), requestUser(r))
		if err != nil {
			writeErr(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var payload []domain.Habit
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := s.habits.Replace(r.Context(), requestUser(r), payload); err != nil {
			writeErr(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	default:
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleHabitStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	day := r.URL.Query().Get("date")
	if day == "" {
		day = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", day); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid date")
		return
	}
	stats, err := s.habits.StatsForDay(r.Context(), requestUser(r), day)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.tasks.List(r.Context(), requestUser(r))
		if err != nil {
			writeErr(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var payload []domain.Task
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := s.tasks.Replace(r.Context(), requestUser(r), payload); err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	default:
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type chatRequest struct {
	Messages []assistant.Message `json:"messages"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.assistant == nil {
		writeErr(w, http.StatusNotImplemented, "assistant is not configured")
		return
	}
	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	reply, err := s.assistant.Chat(r.Context(), payload.Messages)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) handleICSFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	events, err := s.calendar.Events(r.Context(), requestUser(r))
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(icsfeed.Build(events, time.Now())))
}

// handleICSImport accepts a raw iCalendar document and stores its events as
// regular records owned by the requesting user.
func (s *Server) handleICSImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	events, err := icsfeed.Parse(r.Body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.calendar.Import(r.Context(), requestUser(r), events)
	if err != nil {
		s.writeCalendarErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
