package services

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"tournament-factory/battle"
	"tournament-factory/escrow"
	"tournament-factory/factory"
	"tournament-factory/tournament"
)

var (
	ErrNotDeployed     = errors.New("ledger: factory not deployed")
	ErrAlreadyDeployed = errors.New("ledger: factory already deployed")
	ErrUnknownOp       = errors.New("ledger: unknown operation")
	ErrInvalidCommand  = errors.New("ledger: invalid command")
	ErrJournalDiverged = errors.New("ledger: journal replay diverged")
	ErrPersist         = errors.New("ledger: failed to persist command")
	ErrUnavailable     = errors.New("ledger: state unavailable until the journal replays")
	ErrMissingCaller   = errors.New("missing caller identity")
	ErrInvalidRequest  = errors.New("invalid request")
)

// StatusFor maps ledger and domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, factory.ErrInvalidParameters),
		errors.Is(err, escrow.ErrAmountMismatch),
		errors.Is(err, escrow.ErrInvalidAmount),
		errors.Is(err, tournament.ErrInvalidParticipant),
		errors.Is(err, battle.ErrUnknownResolver),
		errors.Is(err, ErrInvalidCommand),
		errors.Is(err, ErrInvalidRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrMissingCaller):
		return fiber.StatusUnauthorized
	case errors.Is(err, factory.ErrUnauthorized):
		return fiber.StatusForbidden
	case errors.Is(err, factory.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, escrow.ErrInsufficientFunds),
		errors.Is(err, escrow.ErrInsufficientPool):
		return fiber.StatusPaymentRequired
	case errors.Is(err, tournament.ErrAlreadyRegistered),
		errors.Is(err, escrow.ErrDuplicateStake),
		errors.Is(err, tournament.ErrTournamentFull),
		errors.Is(err, tournament.ErrRegistrationClosed),
		errors.Is(err, tournament.ErrInvalidState),
		errors.Is(err, tournament.ErrLockNotDue),
		errors.Is(err, escrow.ErrAlreadySettled),
		errors.Is(err, factory.ErrPaused),
		errors.Is(err, ErrAlreadyDeployed):
		return fiber.StatusConflict
	case errors.Is(err, tournament.ErrUnresolvable):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ErrNotDeployed), errors.Is(err, ErrUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("❌ [LEDGER] %s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
