// Package factory creates and tracks tournaments. It owns the arena of
// tournaments, the shared escrow and the active resolver.
package factory

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"tournament-factory/battle"
	"tournament-factory/escrow"
	"tournament-factory/tournament"
)

var (
	ErrInvalidParameters = errors.New("factory: invalid parameters")
	ErrUnauthorized      = errors.New("factory: unauthorized")
	ErrNotFound          = errors.New("factory: tournament not found")
	ErrPaused            = errors.New("factory: paused")
)

// Notification names emitted by the factory itself.
const (
	EventNewTournamentCreated = "NewTournamentCreated"
	EventResolverUpdated      = "ResolverUpdated"
	EventPaused               = "FactoryPaused"
	EventUnpaused             = "FactoryUnpaused"
	EventCreatorVerified      = "CreatorVerificationChanged"
	EventWalletDeposited      = "WalletDeposited"
	EventWalletWithdrawn      = "WalletWithdrawn"

	// Deprecated: older clients listened for this name. It is accepted by
	// CanonicalEventName but never emitted.
	EventNewTournamentHasStarted = "NewTournamentHasStarted"
)

// CanonicalEventName maps deprecated notification names to their current name.
func CanonicalEventName(name string) string {
	if name == EventNewTournamentHasStarted {
		return EventNewTournamentCreated
	}
	return name
}

// Config mirrors the constructor arguments of a deployment.
type Config struct {
	DisplayName     string        `json:"display_name"`
	Symbol          string        `json:"symbol"`
	DefaultEntryFee escrow.Amount `json:"default_entry_fee"`
	// VerificationEnabled restricts tournament creation to the owner and
	// creators the owner has verified.
	VerificationEnabled bool `json:"verification_enabled"`
	// Resolver names the battle resolver; empty selects battle.DefaultResolver.
	Resolver           string `json:"resolver,omitempty"`
	MaxResolveAttempts int    `json:"max_resolve_attempts,omitempty"`
}

// Env is the caller and time of a single call.
type Env struct {
	Sender    string
	Timestamp time.Time
}

type Factory struct {
	owner    string
	cfg      Config
	registry *battle.Registry

	resolverName string
	resolver     battle.Resolver

	wallets *escrow.Wallets
	escrow  *escrow.Escrow

	// tournaments[i] has id i+1.
	tournaments []*tournament.Tournament
	verified    map[string]bool
	paused      bool
}

func New(owner string, cfg Config, registry *battle.Registry) (*Factory, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidParameters)
	}
	if registry == nil {
		registry = battle.NewRegistry()
	}
	name, res, err := registry.Lookup(cfg.Resolver)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if cfg.MaxResolveAttempts <= 0 {
		cfg.MaxResolveAttempts = tournament.DefaultMaxAttempts
	}
	cfg.Resolver = name

	w := escrow.NewWallets()
	return &Factory{
		owner:        owner,
		cfg:          cfg,
		registry:     registry,
		resolverName: name,
		resolver:     res,
		wallets:      w,
		escrow:       escrow.New(w),
		verified:     make(map[string]bool),
	}, nil
}

func (f *Factory) Owner() string { return f.owner }

func (f *Factory) Config() Config { return f.cfg }

func (f *Factory) Resolver() string { return f.resolverName }

func (f *Factory) Paused() bool { return f.paused }

func (f *Factory) Verified(creator string) bool { return f.verified[creator] }

func (f *Factory) onlyOwner(env Env) error {
	if env.Sender != f.owner {
		return fmt.Errorf("%w: %q is not the owner", ErrUnauthorized, env.Sender)
	}
	return nil
}

func factoryEvent(typ string, attrs map[string]string) tournament.Event {
	return tournament.Event{Type: typ, Attributes: attrs}
}

// NewTournament validates the parameters and creates a tournament bound to
// the current resolver. Exactly one NewTournamentCreated event is returned.
func (f *Factory) NewTournament(env Env, entryFee escrow.Amount, deadline time.Time, maxParticipants int) (uint64, []tournament.Event, error) {
	if f.paused {
		return 0, nil, ErrPaused
	}
	if f.cfg.VerificationEnabled && env.Sender != f.owner && !f.verified[env.Sender] {
		return 0, nil, fmt.Errorf("%w: creator %q is not verified", ErrUnauthorized, env.Sender)
	}
	switch {
	case entryFee == 0:
		return 0, nil, fmt.Errorf("%w: entry fee must be positive", ErrInvalidParameters)
	case !deadline.After(env.Timestamp):
		return 0, nil, fmt.Errorf("%w: registration deadline must be in the future", ErrInvalidParameters)
	case maxParticipants < 2:
		return 0, nil, fmt.Errorf("%w: max participants must be greater than 1", ErrInvalidParameters)
	}
	// A full bracket's pool must be representable.
	if _, err := entryFee.Mul(maxParticipants); err != nil {
		return 0, nil, fmt.Errorf("%w: entry fee %s for %d participants: %v", ErrInvalidParameters, entryFee, maxParticipants, err)
	}

	id := uint64(len(f.tournaments) + 1)
	t, err := tournament.New(tournament.Params{
		ID:                   id,
		Creator:              env.Sender,
		EntryFee:             entryFee,
		RegistrationDeadline: deadline,
		MaxParticipants:      maxParticipants,
		CreatedAt:            env.Timestamp,
		Resolver:             f.resolverName,
		MaxAttempts:          f.cfg.MaxResolveAttempts,
	}, f.escrow, f.resolver)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	f.tournaments = append(f.tournaments, t)

	duration := int64(deadline.Sub(env.Timestamp) / time.Second)
	return id, []tournament.Event{{
		Type:         EventNewTournamentCreated,
		TournamentID: id,
		Attributes: map[string]string{
			"id":               strconv.FormatUint(id, 10),
			"duration":         strconv.FormatInt(duration, 10),
			"max_participants": strconv.Itoa(maxParticipants),
			"entry_fee":        entryFee.String(),
			"creator":          env.Sender,
		},
	}}, nil
}

// SetResolver swaps the resolver used by tournaments created from now on.
func (f *Factory) SetResolver(env Env, name string) ([]tournament.Event, error) {
	if err := f.onlyOwner(env); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: resolver name is required", ErrInvalidParameters)
	}
	resolved, res, err := f.registry.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	previous := f.resolverName
	f.resolverName, f.resolver = resolved, res
	return []tournament.Event{factoryEvent(EventResolverUpdated, map[string]string{
		"previous": previous,
		"resolver": resolved,
	})}, nil
}

func (f *Factory) Pause(env Env) ([]tournament.Event, error) {
	if err := f.onlyOwner(env); err != nil {
		return nil, err
	}
	if f.paused {
		return nil, nil
	}
	f.paused = true
	return []tournament.Event{factoryEvent(EventPaused, nil)}, nil
}

func (f *Factory) Unpause(env Env) ([]tournament.Event, error) {
	if err := f.onlyOwner(env); err != nil {
		return nil, err
	}
	if !f.paused {
		return nil, nil
	}
	f.paused = false
	return []tournament.Event{factoryEvent(EventUnpaused, nil)}, nil
}

// SetVerified grants or revokes a creator's right to create tournaments
// while verification is enabled.
func (f *Factory) SetVerified(env Env, creator string, verified bool) ([]tournament.Event, error) {
	if err := f.onlyOwner(env); err != nil {
		return nil, err
	}
	if creator == "" {
		return nil, fmt.Errorf("%w: creator is required", ErrInvalidParameters)
	}
	if f.verified[creator] == verified {
		return nil, nil
	}
	if verified {
		f.verified[creator] = true
	} else {
		delete(f.verified, creator)
	}
	return []tournament.Event{factoryEvent(EventCreatorVerified, map[string]string{
		"creator":  creator,
		"verified": strconv.FormatBool(verified),
	})}, nil
}

func (f *Factory) Tournament(id uint64) (*tournament.Tournament, error) {
	if id == 0 || id > uint64(len(f.tournaments)) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return f.tournaments[id-1], nil
}

// Tournaments returns every tournament in id order.
func (f *Factory) Tournaments() []*tournament.Tournament {
	return append([]*tournament.Tournament(nil), f.tournaments...)
}

func (f *Factory) Register(env Env, id uint64, amount escrow.Amount) ([]tournament.Event, error) {
	if f.paused {
		return nil, ErrPaused
	}
	t, err := f.Tournament(id)
	if err != nil {
		return nil, err
	}
	return t.Register(env.Sender, amount, env.Timestamp)
}

func (f *Factory) Lock(env Env, id uint64) ([]tournament.Event, error) {
	t, err := f.Tournament(id)
	if err != nil {
		return nil, err
	}
	return t.Lock(env.Timestamp)
}

func (f *Factory) Advance(env Env, id uint64) ([]tournament.Event, error) {
	t, err := f.Tournament(id)
	if err != nil {
		return nil, err
	}
	return t.AdvanceRound(env.Timestamp)
}

// Cancel may be called by the tournament's creator or the owner.
func (f *Factory) Cancel(env Env, id uint64) ([]tournament.Event, error) {
	t, err := f.Tournament(id)
	if err != nil {
		return nil, err
	}
	if env.Sender != t.Creator && env.Sender != f.owner {
		return nil, fmt.Errorf("%w: only the creator or owner may cancel", ErrUnauthorized)
	}
	return t.Cancel()
}

// DueForLock lists tournaments whose registration can be locked at now.
func (f *Factory) DueForLock(now time.Time) []uint64 {
	var ids []uint64
	for _, t := range f.tournaments {
		if t.DueForLock(now) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// Deposit credits an external balance. Only the owner acts as the bridge
// for incoming funds.
func (f *Factory) Deposit(env Env, account string, amount escrow.Amount) ([]tournament.Event, error) {
	if err := f.onlyOwner(env); err != nil {
		return nil, err
	}
	if err := f.wallets.Deposit(account, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return []tournament.Event{factoryEvent(EventWalletDeposited, map[string]string{
		"account": account,
		"amount":  amount.String(),
		"balance": f.wallets.Balance(account).String(),
	})}, nil
}

// Withdraw debits the sender's own external balance.
func (f *Factory) Withdraw(env Env, amount escrow.Amount) ([]tournament.Event, error) {
	if env.Sender == "" {
		return nil, fmt.Errorf("%w: sender is required", ErrInvalidParameters)
	}
	if err := f.wallets.Withdraw(env.Sender, amount); err != nil {
		if errors.Is(err, escrow.ErrInvalidAmount) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
		}
		return nil, err
	}
	return []tournament.Event{factoryEvent(EventWalletWithdrawn, map[string]string{
		"account": env.Sender,
		"amount":  amount.String(),
		"balance": f.wallets.Balance(env.Sender).String(),
	})}, nil
}

func (f *Factory) Balance(account string) escrow.Amount {
	return f.wallets.Balance(account)
}

// Custody is the total held in escrow across all tournaments.
func (f *Factory) Custody() escrow.Amount {
	return f.wallets.Custody()
}

// Balances returns every non-zero external balance, sorted by account.
func (f *Factory) Balances() []AccountBalance {
	m := f.wallets.Accounts()
	out := make([]AccountBalance, 0, len(m))
	for k, v := range m {
		out = append(out, AccountBalance{Account: k, Balance: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}

type AccountBalance struct {
	Account string        `json:"account"`
	Balance escrow.Amount `json:"balance"`
}
