package escrow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fee = MustParseAmount("1.0")

func fundedEscrow(t *testing.T, accounts ...string) (*Escrow, *Wallets) {
	t.Helper()
	w := NewWallets()
	for _, a := range accounts {
		require.NoError(t, w.Deposit(a, 5*Unit))
	}
	e := New(w)
	require.NoError(t, e.Open(1, fee))
	return e, w
}

func assertConserved(t *testing.T, e *Escrow, id uint64) {
	t.Helper()
	s, err := e.Summary(id)
	require.NoError(t, err)
	assert.Equal(t, s.Staked, s.Released+s.Refunded+s.Pool, "conservation broken: %+v", s)
}

func TestStake(t *testing.T) {
	e, w := fundedEscrow(t, "alice", "bob")

	require.NoError(t, e.Stake(1, "alice", fee))
	require.NoError(t, e.Stake(1, "bob", fee))

	pool, err := e.Pool(1)
	require.NoError(t, err)
	assert.Equal(t, 2*fee, pool)
	assert.Equal(t, 4*Unit, w.Balance("alice"))
	assert.Equal(t, 2*fee, w.Custody())
	assertConserved(t, e, 1)
}

func TestStakeErrors(t *testing.T) {
	tests := []struct {
		name        string
		tournament  uint64
		participant string
		amount      Amount
		want        error
	}{
		{"duplicate", 1, "alice", fee, ErrDuplicateStake},
		{"amount mismatch", 1, "bob", fee / 2, ErrAmountMismatch},
		{"unknown tournament", 9, "bob", fee, ErrUnknownTournament},
		{"insufficient funds", 1, "carol", fee, ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := fundedEscrow(t, "alice", "bob")
			require.NoError(t, e.Stake(1, "alice", fee))

			err := e.Stake(tt.tournament, tt.participant, tt.amount)
			assert.ErrorIs(t, err, tt.want)

			stakes, err := e.Stakes(1)
			require.NoError(t, err)
			assert.Len(t, stakes, 1)
			assertConserved(t, e, 1)
		})
	}
}

func TestFailedDrawLeavesNoStake(t *testing.T) {
	e, _ := fundedEscrow(t)

	err := e.Stake(1, "pauper", fee)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// the participant may try again once funded
	stakes, err := e.Stakes(1)
	require.NoError(t, err)
	assert.Empty(t, stakes)
}

func TestReleaseSettlesOnce(t *testing.T) {
	e, w := fundedEscrow(t, "alice", "bob")
	require.NoError(t, e.Stake(1, "alice", fee))
	require.NoError(t, e.Stake(1, "bob", fee))

	require.NoError(t, e.Release(1, "alice", 2*fee))
	assert.Equal(t, 6*Unit, w.Balance("alice"))
	assert.Zero(t, w.Custody())

	err := e.Release(1, "alice", fee)
	assert.ErrorIs(t, err, ErrAlreadySettled)
	assert.Equal(t, 6*Unit, w.Balance("alice"))

	stakes, _ := e.Stakes(1)
	for _, s := range stakes {
		assert.Equal(t, StakePaid, s.Status)
	}
	assertConserved(t, e, 1)
}

func TestReleaseInsufficientPool(t *testing.T) {
	e, _ := fundedEscrow(t, "alice")
	require.NoError(t, e.Stake(1, "alice", fee))

	err := e.Release(1, "alice", 2*fee)
	assert.ErrorIs(t, err, ErrInsufficientPool)

	pool, _ := e.Pool(1)
	assert.Equal(t, fee, pool)
}

func TestRefundAll(t *testing.T) {
	e, w := fundedEscrow(t, "alice", "bob")
	require.NoError(t, e.Stake(1, "alice", fee))
	require.NoError(t, e.Stake(1, "bob", fee))

	total, err := e.RefundAll(1)
	require.NoError(t, err)
	assert.Equal(t, 2*fee, total)
	assert.Equal(t, 5*Unit, w.Balance("alice"))
	assert.Equal(t, 5*Unit, w.Balance("bob"))

	again, err := e.RefundAll(1)
	require.NoError(t, err)
	assert.Zero(t, again)
	assert.Equal(t, 5*Unit, w.Balance("alice"))

	assert.ErrorIs(t, e.Release(1, "alice", fee), ErrAlreadySettled)
	assert.ErrorIs(t, e.Stake(1, "carol", fee), ErrAlreadySettled)
	assertConserved(t, e, 1)
}

func TestRefundAfterReleaseFails(t *testing.T) {
	e, _ := fundedEscrow(t, "alice")
	require.NoError(t, e.Stake(1, "alice", fee))
	require.NoError(t, e.Release(1, "alice", fee))

	_, err := e.RefundAll(1)
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

// reentrantCustodian calls back into the escrow while a transfer is in flight.
type reentrantCustodian struct {
	*Wallets
	escrow *Escrow
	nested []error
}

func (r *reentrantCustodian) Transfer(to string, amount Amount) error {
	if r.escrow != nil && len(r.nested) == 0 {
		r.nested = append(r.nested, r.escrow.Release(1, to, amount))
	}
	return r.Wallets.Transfer(to, amount)
}

func TestReentrantReleaseCannotDoublePay(t *testing.T) {
	w := NewWallets()
	require.NoError(t, w.Deposit("alice", 5*Unit))
	require.NoError(t, w.Deposit("bob", 5*Unit))
	c := &reentrantCustodian{Wallets: w}
	e := New(c)
	require.NoError(t, e.Open(1, fee))
	require.NoError(t, e.Stake(1, "alice", fee))
	require.NoError(t, e.Stake(1, "bob", fee))
	c.escrow = e

	require.NoError(t, e.Release(1, "alice", 2*fee))
	require.Len(t, c.nested, 1)
	assert.ErrorIs(t, c.nested[0], ErrAlreadySettled)
	assert.Equal(t, 6*Unit, w.Balance("alice"))
	assertConserved(t, e, 1)
}

type failingCustodian struct {
	*Wallets
}

func (failingCustodian) Transfer(string, Amount) error {
	return errors.New("transfer rejected")
}

func TestFailedTransferRestoresPool(t *testing.T) {
	w := NewWallets()
	require.NoError(t, w.Deposit("alice", 5*Unit))
	e := New(failingCustodian{w})
	require.NoError(t, e.Open(1, fee))
	require.NoError(t, e.Stake(1, "alice", fee))

	require.Error(t, e.Release(1, "alice", fee))
	pool, _ := e.Pool(1)
	assert.Equal(t, fee, pool)

	_, err := e.RefundAll(1)
	require.Error(t, err)
	stakes, _ := e.Stakes(1)
	assert.Equal(t, StakeHeld, stakes[0].Status)
	assertConserved(t, e, 1)
}

func TestOpen(t *testing.T) {
	e := New(NewWallets())
	assert.ErrorIs(t, e.Open(1, 0), ErrInvalidAmount)
	require.NoError(t, e.Open(1, fee))
	assert.ErrorIs(t, e.Open(1, fee), ErrAlreadyOpen)
}

func TestStakeOverflowIsRejected(t *testing.T) {
	huge := Amount(1 << 63)
	w := NewWallets()
	require.NoError(t, w.Deposit("alice", huge))
	require.NoError(t, w.Deposit("bob", huge))
	e := New(w)
	require.NoError(t, e.Open(1, huge))

	require.NoError(t, e.Stake(1, "alice", huge))
	err := e.Stake(1, "bob", huge)
	assert.ErrorIs(t, err, ErrOverflow)

	s, err := e.Summary(1)
	require.NoError(t, err)
	assert.Equal(t, huge, s.Staked)
	assert.Equal(t, huge, s.Pool)
	assert.Equal(t, huge, w.Custody())
	assert.Equal(t, huge, w.Balance("bob"))

	stakes, err := e.Stakes(1)
	require.NoError(t, err)
	assert.Len(t, stakes, 1)
	assertConserved(t, e, 1)
}

func TestCustodyOverflowAcrossTournaments(t *testing.T) {
	huge := Amount(1 << 63)
	w := NewWallets()
	require.NoError(t, w.Deposit("alice", huge))
	require.NoError(t, w.Deposit("bob", huge))
	e := New(w)
	require.NoError(t, e.Open(1, huge))
	require.NoError(t, e.Open(2, huge))

	require.NoError(t, e.Stake(1, "alice", huge))
	assert.ErrorIs(t, e.Stake(2, "bob", huge), ErrOverflow)

	assert.Equal(t, huge, w.Custody())
	assert.Equal(t, huge, w.Balance("bob"))
	pool, err := e.Pool(2)
	require.NoError(t, err)
	assert.Zero(t, pool)
}

func TestTransferOverflowKeepsCustody(t *testing.T) {
	w := NewWallets()
	require.NoError(t, w.Deposit("alice", 2*Unit))
	require.NoError(t, w.Draw("alice", 2*Unit))
	require.NoError(t, w.Deposit("bob", ^Amount(0)))

	assert.ErrorIs(t, w.Transfer("bob", Unit), ErrOverflow)
	assert.Equal(t, 2*Unit, w.Custody())
	assert.Equal(t, ^Amount(0), w.Balance("bob"))
}
