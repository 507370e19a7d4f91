// Package battle decides the winner of a single bracket pairing.
package battle

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

const (
	// DefaultResolver is used when a factory is configured without one.
	DefaultResolver = "hash"
	SeedResolver    = "seed"
)

var (
	ErrInvalidWinner   = errors.New("battle: winner is not one of the pairing")
	ErrUnknownResolver = errors.New("battle: unknown resolver")
	ErrUndecided       = errors.New("battle: match undecided")
)

// Context identifies the match being resolved. Resolvers must return the
// same winner for the same participants and context. Attempt counts retries
// of a resolver that failed or named an outsider.
type Context struct {
	TournamentID uint64 `json:"tournament_id"`
	Round        int    `json:"round"`
	Match        int    `json:"match"`
	Attempt      int    `json:"attempt"`
}

type Resolver interface {
	Resolve(a, b string, ctx Context) (string, error)
}

type ResolverFunc func(a, b string, ctx Context) (string, error)

func (f ResolverFunc) Resolve(a, b string, ctx Context) (string, error) {
	return f(a, b, ctx)
}

// Verify checks that winner is one of the two participants.
func Verify(a, b, winner string) error {
	if winner == "" || (winner != a && winner != b) {
		return fmt.Errorf("%w: %q not in {%q, %q}", ErrInvalidWinner, winner, a, b)
	}
	return nil
}

// HashResolver picks the winner from the double SHA-256 of the match
// context and both identities. It never fails, so the first attempt always
// decides and Attempt is left out of the hash.
type HashResolver struct{}

func (HashResolver) Resolve(a, b string, ctx Context) (string, error) {
	buf := make([]byte, 0, 32+len(a)+len(b))
	buf = binary.BigEndian.AppendUint64(buf, ctx.TournamentID)
	buf = binary.BigEndian.AppendUint32(buf, uint32(ctx.Round))
	buf = binary.BigEndian.AppendUint32(buf, uint32(ctx.Match))
	buf = append(buf, a...)
	buf = append(buf, 0)
	buf = append(buf, b...)

	h := chainhash.DoubleHashH(buf)
	if h[0]&1 == 0 {
		return a, nil
	}
	return b, nil
}

// SeededResolver always advances the better seed, the first participant listed.
type SeededResolver struct{}

func (SeededResolver) Resolve(a, _ string, _ Context) (string, error) {
	return a, nil
}

// Registry maps resolver names to implementations. Factories refer to
// resolvers by name so that journaled history can be replayed.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// NewRegistry returns a registry holding the built-in resolvers.
func NewRegistry() *Registry {
	r := &Registry{resolvers: make(map[string]Resolver)}
	r.resolvers[DefaultResolver] = HashResolver{}
	r.resolvers[SeedResolver] = SeededResolver{}
	return r
}

func (r *Registry) Register(name string, resolver Resolver) error {
	if name == "" || resolver == nil {
		return fmt.Errorf("battle: invalid resolver registration %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[name] = resolver
	return nil
}

// Lookup resolves a name; the empty name selects DefaultResolver.
func (r *Registry) Lookup(name string) (string, Resolver, error) {
	if name == "" {
		name = DefaultResolver
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resolvers[name]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownResolver, name)
	}
	return name, res, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.resolvers))
	for n := range r.resolvers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
