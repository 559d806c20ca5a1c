package httpapi

import (
	"net/http"

	"chessmcts/internal/session"
)

// Server is a thin wrapper around Handler, kept only for callers built
// against an older structure. New code can use Handler directly.
type Server struct {
	h http.Handler
}

// NewServer wraps sessions in a Handler behind Server.
func NewServer(sessions *session.Manager) *Server {
	return &Server{h: NewHandler(sessions)}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.h.ServeHTTP(w, r)
}
