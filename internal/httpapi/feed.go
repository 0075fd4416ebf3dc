package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleEventsWS streams persisted-turn events for one interview to a
// websocket client, e.g. a moderator dashboard following along live.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(id); err != nil {
		respondError(w, http.StatusNotFound, "interview_not_found", err.Error())
		return
	}
	if s.feed == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "live feed not configured")
		return
	}

	upgrader := feedUpgrader
	upgrader.CheckOrigin = s.checkOrigin

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.FeedClients.Inc()
	defer s.metrics.FeedClients.Dec()

	events, cancel := s.feed.Subscribe(id)
	defer cancel()

	// Reader goroutine only notices the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}
}

// checkOrigin mirrors the CORS policy for websocket upgrades: with the
// wildcard origin any browser may connect, otherwise only the configured
// origin or same-host clients.
func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := strings.TrimSpace(s.cfg.AllowedOrigin)
	if allowed == "" || allowed == "*" {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		// Non-browser clients often omit Origin. Allow them.
		return true
	}
	if strings.EqualFold(origin, allowed) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
