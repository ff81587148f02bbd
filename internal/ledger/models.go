package ledger

import (
	"strings"
	"time"
)

// Kind identifies which family of conversion job a record tracks.
type Kind string

const (
	// KindGIF tracks PGN-to-GIF-to-video jobs.
	KindGIF Kind = "gif"
	// KindPGN tracks video-to-PGN extraction jobs.
	KindPGN Kind = "pgn"
	// KindVideo tracks uploaded-video transcode jobs.
	KindVideo Kind = "video"
)

var allKinds = []Kind{KindGIF, KindPGN, KindVideo}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range allKinds {
		if kind == normalized {
			return kind, true
		}
	}
	return "", false
}

// State represents the lifecycle of a conversion job.
type State string

const (
	StateReceived   State = "received"
	StateConverting State = "converting"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

var allStates = []State{
	StateReceived,
	StateConverting,
	StateProcessing,
	StateCompleted,
	StateError,
}

// stateRank orders states so transitions can be expressed as advance-if-behind
// writes. States of equal rank never transition into each other; completed and
// error are both terminal.
var stateRank = map[State]int{
	StateReceived:   1,
	StateConverting: 2,
	StateProcessing: 2,
	StateCompleted:  3,
	StateError:      3,
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateRank[normalized]
	return normalized, ok
}

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// CanAdvance reports whether a record in state from may move to state to.
// Equal or lower rank means the transition is a no-op (duplicate delivery).
func CanAdvance(from, to State) bool {
	fromRank, ok := stateRank[from]
	if !ok {
		return false
	}
	toRank, ok := stateRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// IsTerminal reports whether a state admits no further transitions.
func (s State) IsTerminal() bool {
	return stateRank[s] == stateRank[StateCompleted]
}

// Record is one persisted job status document.
type Record struct {
	ID             int64
	Kind           Kind
	UUID           string
	UserID         string
	State          State
	PGNContent     string
	TimestampsJSON string
	VideoPath      string
	ThumbnailPath  string
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Fields carries the payload columns written alongside a state transition.
// Empty strings leave the stored value untouched.
type Fields struct {
	PGNContent     string
	TimestampsJSON string
	VideoPath      string
	ThumbnailPath  string
	ErrorMessage   string
}

// Stats aggregates record counts per state.
type Stats struct {
	Total     int
	Received  int
	InFlight  int
	Completed int
	Errored   int
}
