package escrow

import "errors"

var (
	// ErrDuplicateStake indicates the participant already has a stake recorded for the tournament.
	ErrDuplicateStake = errors.New("escrow: duplicate stake")

	// ErrAmountMismatch indicates the staked amount differs from the tournament entry fee.
	ErrAmountMismatch = errors.New("escrow: amount does not match entry fee")

	// ErrInsufficientPool indicates a release larger than the remaining pool.
	ErrInsufficientPool = errors.New("escrow: insufficient pool")

	// ErrAlreadySettled indicates the pool was already paid out or refunded.
	ErrAlreadySettled = errors.New("escrow: already settled")

	// ErrInsufficientFunds indicates an external balance cannot cover a draw or withdrawal.
	ErrInsufficientFunds = errors.New("escrow: insufficient funds")

	// ErrUnknownTournament indicates no ledger was opened for the tournament id.
	ErrUnknownTournament = errors.New("escrow: unknown tournament")

	// ErrAlreadyOpen indicates a ledger for the tournament id already exists.
	ErrAlreadyOpen = errors.New("escrow: ledger already open")

	ErrInvalidAmount = errors.New("escrow: invalid amount")
	ErrOverflow      = errors.New("escrow: amount overflow")
)
