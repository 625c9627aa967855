package accounts

import (
	"errors"

	acctsvc "estate-backend/internal/application/accounts"
	authsvc "estate-backend/internal/application/auth"
	"estate-backend/internal/application/ledger"
	"estate-backend/internal/middleware"
	"estate-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Registrar *authsvc.Registrar
	Service   *acctsvc.Service
}

// POST /api/v1/accounts/register (public): 201 with the new user and ledger identity.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var in authsvc.LoginInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	u, err := h.Registrar.Register(c.UserContext(), in)
	switch {
	case err == nil:
	case errors.Is(err, authsvc.ErrEmailTaken):
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	case errors.Is(err, authsvc.ErrEmailPasswordRequired),
		errors.Is(err, authsvc.ErrInvalidEmailFormat),
		errors.Is(err, authsvc.ErrWeakPassword):
		return response.BadRequest(c, err.Error())
	default:
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("register failed")
		return response.InternalError(c)
	}
	return response.SuccessCreated(c, "Account created", fiber.Map{"user": u}, nil)
}

// GET /api/v1/accounts/balances: ledger balances of the caller.
func (h *Handlers) Balances(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	bals, err := h.Service.Balances(c.UserContext(), identity)
	if err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("balances read failed")
		return response.InternalError(c)
	}
	return response.Success(c, "Balances fetched", fiber.Map{"identity": identity, "balances": bals}, nil)
}

type faucetRequest struct {
	Identity string `json:"identity"`
	Amount   uint64 `json:"amount"`
}

// POST /api/v1/ledger/faucet (X-Admin-Key): mint payment token to an identity.
func (h *Handlers) Faucet(c *fiber.Ctx) error {
	var req faucetRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	err := h.Service.Faucet(c.UserContext(), req.Identity, req.Amount)
	switch {
	case err == nil:
	case errors.Is(err, acctsvc.ErrInvalidAmount):
		return response.BadRequest(c, "identity and a positive amount are required")
	case errors.Is(err, ledger.ErrBalanceOverflow):
		return response.Error(c, err.Error(), fiber.StatusUnprocessableEntity, nil)
	default:
		log.Error().Err(err).Str("identity", req.Identity).Msg("faucet mint failed")
		return response.InternalError(c)
	}
	return response.Success(c, "Funds minted", fiber.Map{
		"identity": req.Identity,
		"token":    h.Service.PaymentToken,
		"amount":   req.Amount,
	}, nil)
}
