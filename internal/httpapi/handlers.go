package httpapi

import (
	"encoding/json"
	"net/http"

	"chessmcts/internal/game"
	"chessmcts/internal/game/refchess"
	"chessmcts/internal/search"
	"chessmcts/internal/session"
)

// Handler implements http.Handler for the demo server's two routes with
// a plain path switch.
type Handler struct {
	sessions *session.Manager
}

// NewHandler returns a Handler backed by sessions.
func NewHandler(sessions *session.Manager) *Handler {
	return &Handler{sessions: sessions}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/session/new":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleNewSession(w, r)
	default:
		if len(r.URL.Path) > len("/session/") && r.URL.Path[:len("/session/")] == "/session/" {
			h.handleSessionState(w, r, r.URL.Path[len("/session/"):])
			return
		}
		http.NotFound(w, r)
	}
}

func (h *Handler) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var req NewSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	opts := search.Options{
		MinibatchSize:     req.MinibatchSize,
		MaxPrefetch:       req.MaxPrefetch,
		AggressiveCaching: req.AggressiveCaching,
		CpuctCentiunits:   req.CpuctCentiunits,
		NumWorkers:        req.NumWorkers,
	}
	limits := search.Limits{
		Playouts: req.Playouts,
		Visits:   req.Visits,
		TimeMs:   req.TimeMs,
	}

	s := h.sessions.New(opts, limits)
	writeJSON(w, http.StatusOK, NewSessionResponse{SessionID: s.ID})
}

func (h *Handler) handleSessionState(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	info, best := s.LastInfo()
	resp := SessionStateResponse{Info: infoToDTO(info), Finished: best != nil}
	if best != nil {
		m := moveToDTO(best.Move)
		resp.BestMove = &m
	}
	writeJSON(w, http.StatusOK, resp)
}

func infoToDTO(i search.Info) InfoDTO {
	pv := make([]MoveDTO, len(i.PV))
	for k, m := range i.PV {
		pv[k] = moveToDTO(m)
	}
	return InfoDTO{
		Depth:    i.Depth,
		SelDepth: i.SelDepth,
		TimeMs:   i.TimeMs,
		Nodes:    i.Nodes,
		HashFull: i.HashFull,
		NPS:      i.NPS,
		ScoreCP:  i.ScoreCP,
		PV:       pv,
	}
}

// moveToDTO exposes refchess.Move's concrete From/To/Promotion fields.
// The search core only ever sees the game.Move contract; the demo
// server, which knows it always plays refchess boards, is allowed to
// depend on the concrete type to render human-readable coordinates.
func moveToDTO(m game.Move) MoveDTO {
	rm, ok := m.(refchess.Move)
	if !ok {
		return MoveDTO{}
	}
	dto := MoveDTO{From: rm.From, To: rm.To}
	if rm.Promotion != refchess.NoPiece {
		dto.Promotion = pieceLetters[rm.Promotion]
	}
	return dto
}

var pieceLetters = map[game.PieceType]string{
	game.Knight: "n",
	game.Bishop: "b",
	game.Rook:   "r",
	game.Queen:  "q",
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
