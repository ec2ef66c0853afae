// Package analysis defines the analysis wire protocol shared by the server
// and its clients, plus the evaluation helpers layered on top of it.
package analysis

const (
	CommandAnalyze = "analyze_position"
	CommandReset   = "reset"
)

const (
	TypeAnalysis       = "analysis"
	TypeError          = "error"
	TypeResetConfirmed = "reset_confirmed"
)

// Request is a client command. Moves is the UCI history from the initial
// position; when present the server uses it to name the opening.
type Request struct {
	Command  string   `json:"command"`
	FEN      string   `json:"fen,omitempty"`
	LastMove string   `json:"last_move,omitempty"`
	Moves    []string `json:"moves,omitempty"`
}

// Response is a server reply. Score is in pawns from the side to move's
// point of view; BestMove is UCI; PV holds up to three SAN variations.
type Response struct {
	Type     string   `json:"type"`
	FEN      string   `json:"fen,omitempty"`
	Score    float64  `json:"score"`
	BestMove string   `json:"bestMove,omitempty"`
	Analysis string   `json:"analysis,omitempty"`
	PV       []string `json:"pv,omitempty"`
	Message  string   `json:"message,omitempty"`
}

func ErrorResponse(msg string) Response {
	return Response{Type: TypeError, Message: msg}
}

func ResetResponse() Response {
	return Response{Type: TypeResetConfirmed}
}
