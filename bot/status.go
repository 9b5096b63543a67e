package bot

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"daily-updates-bot/schedule"
	"daily-updates-bot/store"
)

// Status exposes a small operational surface: liveness, the polling
// cursor and the current schedule groups.
type Status struct {
	cursor  *store.Cursor
	sched   *schedule.Scheduler
	started time.Time
}

func NewStatus(cursor *store.Cursor, sched *schedule.Scheduler) *Status {
	return &Status{cursor: cursor, sched: sched, started: time.Now()}
}

func (s *Status) Register(router *mux.Router) {
	router.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.handleHealth)
	router.Methods(http.MethodGet).Path("/status").HandlerFunc(s.handleStatus)
}

func (s *Status) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		log.Printf("error during writing health response: %v", err.Error())
	}
}

func (s *Status) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := struct {
		Uptime       string              `json:"uptime"`
		NextUpdateID int                 `json:"next_update_id"`
		Schedule     map[string][]string `json:"schedule"`
	}{
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		NextUpdateID: s.cursor.Next(),
		Schedule:     s.sched.Groups(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("error during writing status response: %v", err.Error())
	}
}
