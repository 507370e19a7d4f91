// Package tournament implements a single-elimination bracket with staked
// entry fees. Time-based transitions are evaluated lazily from the time
// passed into each call; nothing runs in the background.
package tournament

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tournament-factory/battle"
	"tournament-factory/escrow"
)

const DefaultMaxAttempts = 3

// Params are fixed when the tournament is created.
type Params struct {
	ID                   uint64        `json:"id"`
	Creator              string        `json:"creator"`
	EntryFee             escrow.Amount `json:"entry_fee"`
	RegistrationDeadline time.Time     `json:"registration_deadline"`
	MaxParticipants      int           `json:"max_participants"`
	CreatedAt            time.Time     `json:"created_at"`
	Resolver             string        `json:"resolver"`
	MaxAttempts          int           `json:"max_attempts"`
}

type Pairing struct {
	A        string `json:"a"`
	B        string `json:"b,omitempty"`
	Bye      bool   `json:"bye,omitempty"`
	Winner   string `json:"winner,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
}

type Round struct {
	Number   int       `json:"number"`
	Pairings []Pairing `json:"pairings"`
}

type Tournament struct {
	Params

	escrow   *escrow.Escrow
	resolver battle.Resolver

	state        State
	participants []string
	registered   map[string]struct{}
	rounds       []Round
	winner       string
	reason       string
}

// New opens the escrow ledger and returns a tournament in Registering.
// The resolver is captured for the tournament's whole life.
func New(p Params, esc *escrow.Escrow, resolver battle.Resolver) (*Tournament, error) {
	if esc == nil || resolver == nil {
		return nil, fmt.Errorf("%w: escrow and resolver are required", ErrInvalidParams)
	}
	if p.EntryFee == 0 || p.MaxParticipants < 2 {
		return nil, fmt.Errorf("%w: fee %s, max participants %d", ErrInvalidParams, p.EntryFee, p.MaxParticipants)
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if err := esc.Open(p.ID, p.EntryFee); err != nil {
		return nil, err
	}
	return &Tournament{
		Params:     p,
		escrow:     esc,
		resolver:   resolver,
		state:      Registering,
		registered: make(map[string]struct{}),
	}, nil
}

func (t *Tournament) State() State { return t.state }

func (t *Tournament) Winner() string { return t.winner }

func (t *Tournament) Participants() []string {
	return append([]string(nil), t.participants...)
}

func (t *Tournament) full() bool {
	return len(t.participants) >= t.MaxParticipants
}

func (t *Tournament) deadlinePassed(now time.Time) bool {
	return !now.Before(t.RegistrationDeadline)
}

// DueForLock reports whether Lock would succeed at now.
func (t *Tournament) DueForLock(now time.Time) bool {
	return t.state == Registering && (t.deadlinePassed(now) || t.full())
}

func (t *Tournament) event(typ string, attrs map[string]string) Event {
	return Event{Type: typ, TournamentID: t.ID, Attributes: attrs}
}

// Register stakes the entry fee for participant.
func (t *Tournament) Register(participant string, amount escrow.Amount, now time.Time) ([]Event, error) {
	if strings.TrimSpace(participant) == "" {
		return nil, ErrInvalidParticipant
	}
	if t.state != Registering || t.deadlinePassed(now) {
		return nil, fmt.Errorf("%w: tournament %d is %s", ErrRegistrationClosed, t.ID, t.state)
	}
	if _, ok := t.registered[participant]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, participant)
	}
	if t.full() {
		return nil, fmt.Errorf("%w: %d of %d", ErrTournamentFull, len(t.participants), t.MaxParticipants)
	}

	if err := t.escrow.Stake(t.ID, participant, amount); err != nil {
		return nil, err
	}
	t.participants = append(t.participants, participant)
	t.registered[participant] = struct{}{}

	pool, _ := t.escrow.Pool(t.ID)
	return []Event{t.event(EventParticipantRegistered, map[string]string{
		"participant":  participant,
		"participants": strconv.Itoa(len(t.participants)),
		"pool":         pool.String(),
	})}, nil
}

// Lock closes registration and computes the first round. With no
// participants the tournament aborts instead.
func (t *Tournament) Lock(now time.Time) ([]Event, error) {
	if t.state != Registering {
		return nil, fmt.Errorf("%w: lock in %s", ErrInvalidState, t.state)
	}
	if !t.DueForLock(now) {
		return nil, fmt.Errorf("%w: deadline %s", ErrLockNotDue, t.RegistrationDeadline.UTC().Format(time.RFC3339))
	}

	if len(t.participants) == 0 {
		t.state = Aborted
		t.reason = "no participants"
		return []Event{t.event(EventTournamentAborted, map[string]string{
			"reason":   t.reason,
			"refunded": "0",
		})}, nil
	}

	t.state = Locked
	pool, _ := t.escrow.Pool(t.ID)
	events := []Event{t.event(EventTournamentLocked, map[string]string{
		"participants": strconv.Itoa(len(t.participants)),
		"pool":         pool.String(),
	})}

	t.rounds = append(t.rounds, Round{Number: 1, Pairings: pair(t.participants)})
	t.state = InProgress
	return events, nil
}

// pair matches players by order, 1v2, 3v4 and so on. An odd player out
// receives a bye.
func pair(players []string) []Pairing {
	out := make([]Pairing, 0, (len(players)+1)/2)
	for i := 0; i < len(players); i += 2 {
		if i+1 == len(players) {
			out = append(out, Pairing{A: players[i], Bye: true})
			continue
		}
		out = append(out, Pairing{A: players[i], B: players[i+1]})
	}
	return out
}

// AdvanceRound resolves every pairing of the current round. A Registering
// tournament that is due is locked first. When one player remains the whole
// pool is released to them.
func (t *Tournament) AdvanceRound(now time.Time) ([]Event, error) {
	var events []Event
	if t.state == Registering {
		locked, err := t.Lock(now)
		if err != nil {
			return nil, err
		}
		events = append(events, locked...)
		if t.state != InProgress {
			return events, nil
		}
	}
	if t.state != InProgress {
		return nil, fmt.Errorf("%w: advance in %s", ErrInvalidState, t.state)
	}

	current := t.rounds[len(t.rounds)-1]
	played := make([]Pairing, len(current.Pairings))
	winners := make([]string, 0, len(current.Pairings))

	for i, p := range current.Pairings {
		if p.Bye {
			p.Winner = p.A
		} else {
			winner, attempts, err := t.resolve(p, current.Number, i+1)
			p.Attempts = attempts
			if err != nil {
				aborted, abortErr := t.abort(fmt.Sprintf("unresolvable: round %d match %d", current.Number, i+1))
				if abortErr != nil {
					return events, errors.Join(err, abortErr)
				}
				return append(events, aborted...), fmt.Errorf("%w: round %d match %d: %v", ErrUnresolvable, current.Number, i+1, err)
			}
			p.Winner = winner
		}
		played[i] = p
		winners = append(winners, p.Winner)
	}

	if len(winners) == 1 {
		champion := winners[0]
		pool, err := t.escrow.Pool(t.ID)
		if err != nil {
			return events, err
		}
		if pool > 0 {
			if err := t.escrow.Release(t.ID, champion, pool); err != nil {
				return events, err
			}
		}
		t.rounds[len(t.rounds)-1].Pairings = played
		t.winner = champion
		t.state = Completed
		return append(events,
			t.event(EventRoundAdvanced, roundAttrs(current.Number, winners)),
			t.event(EventTournamentCompleted, map[string]string{
				"winner": champion,
				"prize":  pool.String(),
				"rounds": strconv.Itoa(current.Number),
			}),
		), nil
	}

	t.rounds[len(t.rounds)-1].Pairings = played
	t.rounds = append(t.rounds, Round{Number: current.Number + 1, Pairings: pair(winners)})
	return append(events, t.event(EventRoundAdvanced, roundAttrs(current.Number, winners))), nil
}

func roundAttrs(round int, winners []string) map[string]string {
	return map[string]string{
		"round":     strconv.Itoa(round),
		"winners":   strings.Join(winners, ","),
		"remaining": strconv.Itoa(len(winners)),
	}
}

// resolve retries the resolver up to MaxAttempts times. An error or a
// winner outside the pairing counts as a failed attempt.
func (t *Tournament) resolve(p Pairing, round, match int) (string, int, error) {
	var lastErr error
	for attempt := 1; attempt <= t.MaxAttempts; attempt++ {
		ctx := battle.Context{TournamentID: t.ID, Round: round, Match: match, Attempt: attempt}
		winner, err := t.resolver.Resolve(p.A, p.B, ctx)
		if err == nil {
			err = battle.Verify(p.A, p.B, winner)
		}
		if err == nil {
			return winner, attempt, nil
		}
		lastErr = err
	}
	return "", t.MaxAttempts, lastErr
}

// Cancel aborts a tournament that is still registering and refunds all stakes.
func (t *Tournament) Cancel() ([]Event, error) {
	if t.state != Registering {
		return nil, fmt.Errorf("%w: cancel in %s", ErrInvalidState, t.state)
	}
	return t.abort("cancelled")
}

func (t *Tournament) abort(reason string) ([]Event, error) {
	refunded, err := t.escrow.RefundAll(t.ID)
	if err != nil {
		return nil, err
	}
	t.state = Aborted
	t.reason = reason
	return []Event{t.event(EventTournamentAborted, map[string]string{
		"reason":   reason,
		"refunded": refunded.String(),
	})}, nil
}

// View is a read-only snapshot of a tournament.
type View struct {
	Params
	State        State          `json:"state"`
	Participants []string       `json:"participants"`
	Rounds       []Round        `json:"rounds"`
	PooledStake  escrow.Amount  `json:"pooled_stake"`
	Winner       string         `json:"winner,omitempty"`
	AbortReason  string         `json:"abort_reason,omitempty"`
	Escrow       escrow.Summary `json:"escrow"`
}

func (t *Tournament) View() View {
	summary, _ := t.escrow.Summary(t.ID)
	rounds := make([]Round, len(t.rounds))
	for i, r := range t.rounds {
		rounds[i] = Round{Number: r.Number, Pairings: append([]Pairing(nil), r.Pairings...)}
	}
	return View{
		Params:       t.Params,
		State:        t.state,
		Participants: t.Participants(),
		Rounds:       rounds,
		PooledStake:  summary.Pool,
		Winner:       t.winner,
		AbortReason:  t.reason,
		Escrow:       summary,
	}
}
