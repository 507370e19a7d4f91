package tournament

import (
	"errors"
	"fmt"
)

type State int

const (
	Registering State = iota
	Locked
	InProgress
	Completed
	Aborted
)

var stateNames = map[State]string{
	Registering: "registering",
	Locked:      "locked",
	InProgress:  "in_progress",
	Completed:   "completed",
	Aborted:     "aborted",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Aborted
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for k, v := range stateNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("tournament: unknown state %q", b)
}

var (
	ErrRegistrationClosed = errors.New("tournament: registration closed")
	ErrAlreadyRegistered  = errors.New("tournament: already registered")
	ErrTournamentFull     = errors.New("tournament: full")
	ErrInvalidState       = errors.New("tournament: invalid state for operation")
	ErrLockNotDue         = errors.New("tournament: deadline not reached and bracket not full")
	ErrUnresolvable       = errors.New("tournament: pairing unresolvable")
	ErrInvalidParticipant = errors.New("tournament: invalid participant")
	ErrInvalidParams      = errors.New("tournament: invalid parameters")
)

// Lifecycle notification names.
const (
	EventParticipantRegistered = "ParticipantRegistered"
	EventTournamentLocked      = "TournamentLocked"
	EventRoundAdvanced         = "RoundAdvanced"
	EventTournamentCompleted   = "TournamentCompleted"
	EventTournamentAborted     = "TournamentAborted"
)

// Event is a lifecycle notification emitted by a state-changing call.
type Event struct {
	Type         string            `json:"type"`
	TournamentID uint64            `json:"tournament_id"`
	Attributes   map[string]string `json:"attributes"`
}
