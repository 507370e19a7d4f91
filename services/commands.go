package services

import (
	"fmt"
	"strconv"
	"time"

	"tournament-factory/escrow"
	"tournament-factory/factory"
	"tournament-factory/tournament"
)

const (
	OpDeploy        = "deploy"
	OpNewTournament = "new_tournament"
	OpSetResolver   = "set_resolver"
	OpPause         = "pause"
	OpUnpause       = "unpause"
	OpSetVerified   = "set_verified"
	OpRegister      = "register"
	OpLock          = "lock"
	OpAdvance       = "advance"
	OpCancel        = "cancel"
	OpDeposit       = "deposit"
	OpWithdraw      = "withdraw"
)

const EventFactoryDeployed = "FactoryDeployed"

// DeployArgs are the constructor arguments of the factory.
type DeployArgs struct {
	Owner string `json:"owner"`
	factory.Config
}

// Command is a single state-changing call, in the form it is journaled.
// Timestamp is in unix seconds so replays see identical times.
type Command struct {
	Op              string        `json:"op"`
	Sender          string        `json:"sender"`
	Timestamp       int64         `json:"timestamp"`
	TournamentID    uint64        `json:"tournament_id,omitempty"`
	Amount          escrow.Amount `json:"amount,omitempty"`
	Deadline        int64         `json:"deadline,omitempty"`
	MaxParticipants int           `json:"max_participants,omitempty"`
	Account         string        `json:"account,omitempty"`
	Resolver        string        `json:"resolver,omitempty"`
	Verified        bool          `json:"verified,omitempty"`
	Deploy          *DeployArgs   `json:"deploy,omitempty"`
}

// Receipt reports the outcome of an executed command.
type Receipt struct {
	Seq          uint64             `json:"seq,omitempty"`
	TournamentID uint64             `json:"tournament_id,omitempty"`
	Events       []tournament.Event `json:"events"`
}

func unix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// apply runs cmd against the in-memory state. Callers hold s.mu.
func (s *LedgerService) apply(cmd Command) (uint64, []tournament.Event, error) {
	env := factory.Env{Sender: cmd.Sender, Timestamp: unix(cmd.Timestamp)}

	if cmd.Op == OpDeploy {
		if s.factory != nil {
			return 0, nil, ErrAlreadyDeployed
		}
		if cmd.Deploy == nil {
			return 0, nil, fmt.Errorf("%w: deploy arguments missing", ErrInvalidCommand)
		}
		f, err := factory.New(cmd.Deploy.Owner, cmd.Deploy.Config, s.Registry)
		if err != nil {
			return 0, nil, err
		}
		s.factory = f
		cfg := f.Config()
		return 0, []tournament.Event{{
			Type: EventFactoryDeployed,
			Attributes: map[string]string{
				"owner":                f.Owner(),
				"display_name":         cfg.DisplayName,
				"symbol":               cfg.Symbol,
				"default_entry_fee":    cfg.DefaultEntryFee.String(),
				"verification_enabled": strconv.FormatBool(cfg.VerificationEnabled),
				"resolver":             cfg.Resolver,
			},
		}}, nil
	}

	f := s.factory
	if f == nil {
		return 0, nil, ErrNotDeployed
	}

	var (
		events []tournament.Event
		err    error
	)
	switch cmd.Op {
	case OpNewTournament:
		return f.NewTournament(env, cmd.Amount, unix(cmd.Deadline), cmd.MaxParticipants)
	case OpSetResolver:
		events, err = f.SetResolver(env, cmd.Resolver)
	case OpPause:
		events, err = f.Pause(env)
	case OpUnpause:
		events, err = f.Unpause(env)
	case OpSetVerified:
		events, err = f.SetVerified(env, cmd.Account, cmd.Verified)
	case OpRegister:
		events, err = f.Register(env, cmd.TournamentID, cmd.Amount)
	case OpLock:
		events, err = f.Lock(env, cmd.TournamentID)
	case OpAdvance:
		events, err = f.Advance(env, cmd.TournamentID)
	case OpCancel:
		events, err = f.Cancel(env, cmd.TournamentID)
	case OpDeposit:
		events, err = f.Deposit(env, cmd.Account, cmd.Amount)
	case OpWithdraw:
		events, err = f.Withdraw(env, cmd.Amount)
	default:
		return 0, nil, fmt.Errorf("%w: %q", ErrUnknownOp, cmd.Op)
	}
	return cmd.TournamentID, events, err
}
