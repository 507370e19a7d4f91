package services

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"tournament-factory/escrow"
	"tournament-factory/models"
)

// TournamentService exposes tournament operations over HTTP.
type TournamentService struct {
	Ledger *LedgerService
}

func NewTournamentService(ledger *LedgerService) *TournamentService {
	return &TournamentService{Ledger: ledger}
}

func caller(c *fiber.Ctx) (string, error) {
	id, _ := c.Locals("user_id").(string)
	if id == "" {
		return "", ErrMissingCaller
	}
	return id, nil
}

func tournamentID(c *fiber.Ctx) (uint64, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: tournament id must be a positive integer", ErrInvalidRequest)
	}
	return id, nil
}

// parseBody decodes a JSON body when one was sent.
func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// respondReceipt writes a receipt. A call that changed state and still
// failed returns the error together with its events.
func respondReceipt(c *fiber.Ctx, okStatus int, receipt Receipt, err error) error {
	if err != nil {
		body := fiber.Map{"error": err.Error()}
		if len(receipt.Events) > 0 {
			body["seq"] = receipt.Seq
			body["events"] = receipt.Events
		}
		return c.Status(StatusFor(err)).JSON(body)
	}
	return c.Status(okStatus).JSON(receipt)
}

func (s *TournamentService) CreateTournament(c *fiber.Ctx) error {
	sender, err := caller(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		EntryFee        *escrow.Amount `json:"entry_fee"`
		Deadline        int64          `json:"deadline"`
		MaxParticipants int            `json:"max_participants"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var fee escrow.Amount
	if req.EntryFee != nil {
		fee = *req.EntryFee
	} else if fee, err = s.Ledger.DefaultEntryFee(); err != nil {
		return respondError(c, err)
	}

	receipt, err := s.Ledger.Execute(Command{
		Op:              OpNewTournament,
		Sender:          sender,
		Amount:          fee,
		Deadline:        req.Deadline,
		MaxParticipants: req.MaxParticipants,
	})
	return respondReceipt(c, fiber.StatusCreated, receipt, err)
}

func (s *TournamentService) GetTournaments(c *fiber.Ctx) error {
	views, err := s.Ledger.Tournaments()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"tournaments": views, "count": len(views)})
}

func (s *TournamentService) GetTournament(c *fiber.Ctx) error {
	id, err := tournamentID(c)
	if err != nil {
		return respondError(c, err)
	}
	view, err := s.Ledger.Tournament(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

func (s *TournamentService) Register(c *fiber.Ctx) error {
	sender, err := caller(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := tournamentID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Amount *escrow.Amount `json:"amount"`
	}
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	var amount escrow.Amount
	if req.Amount != nil {
		amount = *req.Amount
	} else {
		view, err := s.Ledger.Tournament(id)
		if err != nil {
			return respondError(c, err)
		}
		amount = view.EntryFee
	}

	receipt, err := s.Ledger.Execute(Command{Op: OpRegister, Sender: sender, TournamentID: id, Amount: amount})
	return respondReceipt(c, fiber.StatusOK, receipt, err)
}

// transition runs a body-less tournament command such as lock or advance.
func (s *TournamentService) transition(op string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sender, err := caller(c)
		if err != nil {
			return respondError(c, err)
		}
		id, err := tournamentID(c)
		if err != nil {
			return respondError(c, err)
		}
		receipt, err := s.Ledger.Execute(Command{Op: op, Sender: sender, TournamentID: id})
		return respondReceipt(c, fiber.StatusOK, receipt, err)
	}
}

func (s *TournamentService) Lock(c *fiber.Ctx) error { return s.transition(OpLock)(c) }

func (s *TournamentService) Advance(c *fiber.Ctx) error { return s.transition(OpAdvance)(c) }

func (s *TournamentService) Cancel(c *fiber.Ctx) error { return s.transition(OpCancel)(c) }

// eventResponse renders stored attributes as a JSON object.
type eventResponse struct {
	Seq          uint64          `json:"seq"`
	Name         string          `json:"name"`
	TournamentID uint64          `json:"tournament_id,omitempty"`
	Attributes   json.RawMessage `json:"attributes"`
	EmittedAt    int64           `json:"emitted_at"`
}

func toEventResponses(records []models.EventRecord) []eventResponse {
	out := make([]eventResponse, len(records))
	for i, r := range records {
		attrs := json.RawMessage(r.Attributes)
		if len(attrs) == 0 {
			attrs = json.RawMessage("null")
		}
		out[i] = eventResponse{
			Seq:          r.Seq,
			Name:         r.Name,
			TournamentID: r.TournamentID,
			Attributes:   attrs,
			EmittedAt:    r.EmittedAt.Unix(),
		}
	}
	return out
}

func (s *TournamentService) GetTournamentEvents(c *fiber.Ctx) error {
	id, err := tournamentID(c)
	if err != nil {
		return respondError(c, err)
	}
	if _, err := s.Ledger.Tournament(id); err != nil {
		return respondError(c, err)
	}
	records, err := s.Ledger.Events(EventFilter{TournamentID: id, Name: c.Query("name")})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"events": toEventResponses(records)})
}

// GetEvents lists journaled events. The deprecated NewTournamentHasStarted
// name selects NewTournamentCreated events.
func (s *TournamentService) GetEvents(c *fiber.Ctx) error {
	filter := EventFilter{
		Name:  c.Query("name"),
		Limit: c.QueryInt("limit", 100),
	}
	if after := c.QueryInt("after", 0); after > 0 {
		filter.AfterSeq = uint64(after)
	}
	if tid := c.QueryInt("tournament_id", 0); tid > 0 {
		filter.TournamentID = uint64(tid)
	}
	records, err := s.Ledger.Events(filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"events": toEventResponses(records)})
}
