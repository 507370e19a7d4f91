// Package escrow keeps custody of tournament entry stakes and accounts for
// every unit that enters or leaves the pool.
//
// Bookkeeping is always updated before funds leave custody, so a custodian
// that calls back into the escrow observes the already-decremented pool.
package escrow

import "fmt"

type StakeStatus int

const (
	StakeHeld StakeStatus = iota
	StakePaid
	StakeRefunded
)

func (s StakeStatus) String() string {
	switch s {
	case StakeHeld:
		return "held"
	case StakePaid:
		return "paid"
	case StakeRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

func (s StakeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Stake struct {
	Participant string      `json:"participant"`
	Amount      Amount      `json:"amount"`
	Status      StakeStatus `json:"status"`
}

// Summary is the per-tournament accounting view.
// Staked == Released + Refunded + Pool holds after every operation.
type Summary struct {
	EntryFee Amount `json:"entry_fee"`
	Staked   Amount `json:"staked"`
	Released Amount `json:"released"`
	Refunded Amount `json:"refunded"`
	Pool     Amount `json:"pool"`
}

type ledger struct {
	fee      Amount
	stakes   []*Stake
	index    map[string]*Stake
	staked   Amount
	released Amount
	refunded Amount
	pool     Amount
	settled  bool
}

// Escrow holds the stake ledgers of every tournament sharing one custodian.
type Escrow struct {
	custodian Custodian
	ledgers   map[uint64]*ledger
}

func New(custodian Custodian) *Escrow {
	return &Escrow{
		custodian: custodian,
		ledgers:   make(map[uint64]*ledger),
	}
}

// Open creates the ledger for a tournament with its configured entry fee.
func (e *Escrow) Open(tournamentID uint64, entryFee Amount) error {
	if entryFee == 0 {
		return fmt.Errorf("%w: entry fee must be positive", ErrInvalidAmount)
	}
	if _, ok := e.ledgers[tournamentID]; ok {
		return fmt.Errorf("%w: tournament %d", ErrAlreadyOpen, tournamentID)
	}
	e.ledgers[tournamentID] = &ledger{fee: entryFee, index: make(map[string]*Stake)}
	return nil
}

func (e *Escrow) ledger(tournamentID uint64) (*ledger, error) {
	l, ok := e.ledgers[tournamentID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTournament, tournamentID)
	}
	return l, nil
}

// Stake records the participant's entry and draws the funds into custody.
// The record is written first and removed again if the draw fails.
func (e *Escrow) Stake(tournamentID uint64, participant string, amount Amount) error {
	l, err := e.ledger(tournamentID)
	if err != nil {
		return err
	}
	if _, ok := l.index[participant]; ok {
		return fmt.Errorf("%w: %s in tournament %d", ErrDuplicateStake, participant, tournamentID)
	}
	if amount != l.fee {
		return fmt.Errorf("%w: got %s, want %s", ErrAmountMismatch, amount, l.fee)
	}
	if l.settled {
		return fmt.Errorf("%w: tournament %d", ErrAlreadySettled, tournamentID)
	}
	// The pool never exceeds the staked total, so this bounds both.
	staked, err := l.staked.Add(amount)
	if err != nil {
		return fmt.Errorf("stake %s: %w", participant, err)
	}

	s := &Stake{Participant: participant, Amount: amount, Status: StakeHeld}
	l.stakes = append(l.stakes, s)
	l.index[participant] = s
	l.staked = staked
	l.pool += amount

	if err := e.custodian.Draw(participant, amount); err != nil {
		l.stakes = l.stakes[:len(l.stakes)-1]
		delete(l.index, participant)
		l.staked -= amount
		l.pool -= amount
		return fmt.Errorf("stake %s: %w", participant, err)
	}
	return nil
}

// Release pays amount from the pool to recipient. Draining the pool settles
// the ledger and marks every held stake as paid.
func (e *Escrow) Release(tournamentID uint64, recipient string, amount Amount) error {
	l, err := e.ledger(tournamentID)
	if err != nil {
		return err
	}
	if l.settled {
		return fmt.Errorf("%w: tournament %d", ErrAlreadySettled, tournamentID)
	}
	if amount == 0 {
		return fmt.Errorf("%w: release of zero", ErrInvalidAmount)
	}
	if amount > l.pool {
		return fmt.Errorf("%w: pool holds %s, asked %s", ErrInsufficientPool, l.pool, amount)
	}

	l.pool -= amount
	l.released += amount
	var paid []*Stake
	if l.pool == 0 {
		l.settled = true
		for _, s := range l.stakes {
			if s.Status == StakeHeld {
				s.Status = StakePaid
				paid = append(paid, s)
			}
		}
	}

	if err := e.custodian.Transfer(recipient, amount); err != nil {
		l.pool += amount
		l.released -= amount
		l.settled = false
		for _, s := range paid {
			s.Status = StakeHeld
		}
		return fmt.Errorf("release to %s: %w", recipient, err)
	}
	return nil
}

// RefundAll returns every held stake to its participant. Stakes already
// refunded are skipped, so repeated calls move no funds.
func (e *Escrow) RefundAll(tournamentID uint64) (Amount, error) {
	l, err := e.ledger(tournamentID)
	if err != nil {
		return 0, err
	}
	if l.released > 0 {
		return 0, fmt.Errorf("%w: tournament %d paid out", ErrAlreadySettled, tournamentID)
	}

	var total Amount
	for _, s := range l.stakes {
		if s.Status != StakeHeld {
			continue
		}
		s.Status = StakeRefunded
		l.pool -= s.Amount
		l.refunded += s.Amount

		if err := e.custodian.Transfer(s.Participant, s.Amount); err != nil {
			s.Status = StakeHeld
			l.pool += s.Amount
			l.refunded -= s.Amount
			return total, fmt.Errorf("refund %s: %w", s.Participant, err)
		}
		total += s.Amount
	}
	l.settled = true
	return total, nil
}

func (e *Escrow) Pool(tournamentID uint64) (Amount, error) {
	l, err := e.ledger(tournamentID)
	if err != nil {
		return 0, err
	}
	return l.pool, nil
}

func (e *Escrow) Summary(tournamentID uint64) (Summary, error) {
	l, err := e.ledger(tournamentID)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		EntryFee: l.fee,
		Staked:   l.staked,
		Released: l.released,
		Refunded: l.refunded,
		Pool:     l.pool,
	}, nil
}

// Stakes returns a copy of the tournament's stakes in registration order.
func (e *Escrow) Stakes(tournamentID uint64) ([]Stake, error) {
	l, err := e.ledger(tournamentID)
	if err != nil {
		return nil, err
	}
	out := make([]Stake, len(l.stakes))
	for i, s := range l.stakes {
		out[i] = *s
	}
	return out, nil
}
