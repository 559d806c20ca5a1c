// Package httpapi is a thin net/http demo server over internal/session:
// a DTO file, a Handler implementing http.Handler with a path switch,
// and a Server wrapper kept only for callers that still expect that
// shape.
package httpapi

// NewSessionRequest configures a search session's limits and options.
// A zero MinibatchSize or NumWorkers is clamped to search.Options's
// default; a zero MaxPrefetch or CpuctCentiunits is in range and is used
// as given; a zero limit disables that limit.
type NewSessionRequest struct {
	MinibatchSize     int   `json:"minibatch_size"`
	MaxPrefetch       int   `json:"max_prefetch"`
	AggressiveCaching bool  `json:"aggressive_caching"`
	CpuctCentiunits   int   `json:"cpuct_centiunits"`
	NumWorkers        int   `json:"num_workers"`
	Playouts          int64 `json:"playouts"`
	Visits            int64 `json:"visits"`
	TimeMs            int64 `json:"time_ms"`
}

// NewSessionResponse is returned immediately; the search itself runs
// asynchronously and is polled via GET /session/{id}.
type NewSessionResponse struct {
	SessionID string `json:"session_id"`
}

// MoveDTO is a move in the from/to/promotion coordinate system the demo
// server's clients speak.
type MoveDTO struct {
	From      int    `json:"from"`
	To        int    `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// InfoDTO mirrors search.Info for JSON transport.
type InfoDTO struct {
	Depth    int32     `json:"depth"`
	SelDepth int32     `json:"seldepth"`
	TimeMs   int64     `json:"time_ms"`
	Nodes    int64     `json:"nodes"`
	HashFull int64     `json:"hashfull"`
	NPS      int64     `json:"nps"`
	ScoreCP  int64     `json:"score_cp"`
	PV       []MoveDTO `json:"pv"`
}

// SessionStateResponse reports a session's latest progress and, once
// finished, its best move.
type SessionStateResponse struct {
	Info     InfoDTO  `json:"info"`
	Finished bool     `json:"finished"`
	BestMove *MoveDTO `json:"best_move,omitempty"`
}
