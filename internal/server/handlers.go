package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"HeadToHead/internal/core"
	"HeadToHead/internal/escrow"
	"HeadToHead/internal/game"
	"HeadToHead/internal/pricing"
	"HeadToHead/internal/store"
)

func (s *Server) handleDeposit(c *fiber.Ctx) error {
	player, err := playerID(c)
	if err != nil {
		return badRequest(c, err)
	}

	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}

	if err := s.engine.Deposit(player, req.Amount); err != nil {
		return fail(c, err)
	}

	return c.JSON(s.queries.GetBalance(player))
}

func (s *Server) handleCreateGame(c *fiber.Ctx) error {
	player, err := playerID(c)
	if err != nil {
		return badRequest(c, err)
	}

	var req struct {
		Prediction string `json:"prediction"` // "up" or "down"
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}

	var prediction bool
	switch req.Prediction {
	case "up":
		prediction = true
	case "down":
		prediction = false
	default:
		return badRequest(c, errors.New(`prediction must be "up" or "down"`))
	}

	index, err := s.engine.CreateGame(player, prediction)
	if err != nil {
		return fail(c, err)
	}

	resp, err := s.queries.GetGame(index)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (s *Server) handleJoinGame(c *fiber.Ctx) error {
	return s.gameAction(c, s.engine.JoinGame)
}

func (s *Server) handleClaim(c *fiber.Ctx) error {
	return s.gameAction(c, s.engine.ClaimWinnings)
}

func (s *Server) handleWithdraw(c *fiber.Ctx) error {
	return s.gameAction(c, s.engine.WithdrawFromGame)
}

// gameAction runs one player-on-game engine operation and returns the
// updated game.
func (s *Server) gameAction(c *fiber.Ctx, op func(uuid.UUID, int) error) error {
	player, err := playerID(c)
	if err != nil {
		return badRequest(c, err)
	}

	index, err := c.ParamsInt("index")
	if err != nil {
		return badRequest(c, errors.New("invalid game index"))
	}

	if err := op(player, index); err != nil {
		return fail(c, err)
	}

	resp, err := s.queries.GetGame(index)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

func (s *Server) handleListGames(c *fiber.Ctx) error {
	var status *game.Status
	if q := c.Query("status"); q != "" {
		st, ok := parseStatus(q)
		if !ok {
			return badRequest(c, errors.New("unknown status filter"))
		}
		status = &st
	}

	return c.JSON(s.queries.ListGames(status))
}

func (s *Server) handleGetGame(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return badRequest(c, errors.New("invalid game index"))
	}

	resp, err := s.queries.GetGame(index)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

func (s *Server) handleGetPrices(c *fiber.Ctx) error {
	return c.JSON(s.queries.GetPrices())
}

func (s *Server) handleGetEscrow(c *fiber.Ctx) error {
	return c.JSON(s.queries.GetEscrow())
}

func (s *Server) handleGetBalance(c *fiber.Ctx) error {
	player, err := playerID(c)
	if err != nil {
		return badRequest(c, err)
	}
	return c.JSON(s.queries.GetBalance(player))
}

func (s *Server) handleEventHistory(c *fiber.Ctx) error {
	limit, before := pagination(c)

	entries, err := s.queries.GetEventHistory(c.Context(), limit, before)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(entries)
}

func (s *Server) handleJournalHistory(c *fiber.Ctx) error {
	player, err := playerID(c)
	if err != nil {
		return badRequest(c, err)
	}
	limit, before := pagination(c)

	entries, err := s.queries.GetJournalHistory(c.Context(), player, limit, before)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(entries)
}

func (s *Server) handleAppendPrice(c *fiber.Ctx) error {
	var req struct {
		Price uint64 `json:"price"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}

	index, err := s.engine.AppendPrice(s.engine.Config().Admin, req.Price)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"index": index, "price": req.Price})
}

func (s *Server) handleIntegrity(c *fiber.Ctx) error {
	report, err := s.queries.VerifyIntegrity(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(report)
}

// --- helpers ---

// playerID extracts the caller identity from the X-Player-ID header.
func playerID(c *fiber.Ctx) (uuid.UUID, error) {
	raw := c.Get("X-Player-ID")
	if raw == "" {
		return uuid.Nil, errors.New("missing X-Player-ID header")
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid X-Player-ID header")
	}
	return id, nil
}

func pagination(c *fiber.Ctx) (limit int, before *int64) {
	limit = c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if q := c.Query("before"); q != "" {
		if v, err := strconv.ParseInt(q, 10, 64); err == nil {
			before = &v
		}
	}
	return limit, before
}

func parseStatus(s string) (game.Status, bool) {
	switch s {
	case "open":
		return game.StatusOpen, true
	case "matched":
		return game.StatusMatched, true
	case "resolved":
		return game.StatusResolved, true
	case "withdrawn":
		return game.StatusWithdrawn, true
	default:
		return 0, false
	}
}

func statusLabel(code int) string {
	return strconv.Itoa(code)
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

// fail maps engine sentinels to HTTP statuses.
func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return fiber.StatusNotFound

	case errors.Is(err, core.ErrAdminOnly),
		errors.Is(err, core.ErrSignerNotWinner),
		errors.Is(err, core.ErrUnauthorizedWithdrawal):
		return fiber.StatusForbidden

	case errors.Is(err, game.ErrAlreadyClosed),
		errors.Is(err, game.ErrAlreadyJoined),
		errors.Is(err, game.ErrSelfJoin),
		errors.Is(err, game.ErrNotStarted),
		errors.Is(err, game.ErrWithdrawalLocked),
		errors.Is(err, core.ErrPriceMovedTooMuch),
		errors.Is(err, core.ErrGameNotFinished):
		return fiber.StatusConflict

	case errors.Is(err, escrow.ErrInsufficientFunds),
		errors.Is(err, escrow.ErrTransferFailed),
		errors.Is(err, pricing.ErrInvalidPrice),
		errors.Is(err, core.ErrArithmeticOverflow):
		return fiber.StatusBadRequest

	case errors.Is(err, store.ErrAllocationFailed),
		errors.Is(err, store.ErrSizeOverflow):
		return fiber.StatusInsufficientStorage

	default:
		return fiber.StatusInternalServerError
	}
}
