package services

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"tournament-factory/escrow"
)

// FactoryService exposes the factory's owner operations, wallets and
// journal over HTTP.
type FactoryService struct {
	Ledger *LedgerService
}

func NewFactoryService(ledger *LedgerService) *FactoryService {
	return &FactoryService{Ledger: ledger}
}

func (s *FactoryService) GetFactory(c *fiber.Ctx) error {
	info, err := s.Ledger.Info()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(info)
}

func (s *FactoryService) GetOwner(c *fiber.Ctx) error {
	owner, err := s.Ledger.Owner()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"owner": owner})
}

func (s *FactoryService) execute(c *fiber.Ctx, cmd Command) error {
	sender, err := caller(c)
	if err != nil {
		return respondError(c, err)
	}
	cmd.Sender = sender
	receipt, err := s.Ledger.Execute(cmd)
	return respondReceipt(c, fiber.StatusOK, receipt, err)
}

func (s *FactoryService) SetResolver(c *fiber.Ctx) error {
	var req struct {
		Resolver string `json:"resolver"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	return s.execute(c, Command{Op: OpSetResolver, Resolver: req.Resolver})
}

func (s *FactoryService) Pause(c *fiber.Ctx) error {
	return s.execute(c, Command{Op: OpPause})
}

func (s *FactoryService) Unpause(c *fiber.Ctx) error {
	return s.execute(c, Command{Op: OpUnpause})
}

func (s *FactoryService) SetVerified(c *fiber.Ctx) error {
	var req struct {
		Verified bool `json:"verified"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	return s.execute(c, Command{Op: OpSetVerified, Account: c.Params("creator"), Verified: req.Verified})
}

func parseAmountBody(c *fiber.Ctx) (escrow.Amount, error) {
	var req struct {
		Amount escrow.Amount `json:"amount"`
	}
	if err := parseBody(c, &req); err != nil {
		return 0, err
	}
	if req.Amount == 0 {
		return 0, fmt.Errorf("%w: amount is required", ErrInvalidRequest)
	}
	return req.Amount, nil
}

// Deposit credits an account. Only the owner may bridge funds in.
func (s *FactoryService) Deposit(c *fiber.Ctx) error {
	amount, err := parseAmountBody(c)
	if err != nil {
		return respondError(c, err)
	}
	return s.execute(c, Command{Op: OpDeposit, Account: c.Params("account"), Amount: amount})
}

// Withdraw debits the caller's own balance.
func (s *FactoryService) Withdraw(c *fiber.Ctx) error {
	amount, err := parseAmountBody(c)
	if err != nil {
		return respondError(c, err)
	}
	return s.execute(c, Command{Op: OpWithdraw, Amount: amount})
}

func (s *FactoryService) GetBalance(c *fiber.Ctx) error {
	account := c.Params("account")
	if account == "me" {
		var err error
		if account, err = caller(c); err != nil {
			return respondError(c, err)
		}
	}
	bal, err := s.Ledger.Balance(account)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"account": account, "balance": bal})
}

func (s *FactoryService) GetJournal(c *fiber.Ctx) error {
	after := c.QueryInt("after", 0)
	if after < 0 {
		after = 0
	}
	entries, err := s.Ledger.Journal(uint64(after), c.QueryInt("limit", 100))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"entries": entries})
}
