package assets

import (
	"encoding/base64"
	"errors"

	"estate-backend/internal/application/ledger"
	"estate-backend/internal/application/yield"
	"estate-backend/internal/middleware"
	"estate-backend/internal/pkg/assetrecord"
	"estate-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *yield.Service
}

// writeError maps settlement errors to statuses. Anything unmapped is an
// internal fault and is logged.
func writeError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, yield.ErrAssetNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, yield.ErrInsufficientTokens),
		errors.Is(err, yield.ErrInvalidAmount),
		errors.Is(err, yield.ErrInvalidMetadataHash),
		errors.Is(err, ledger.ErrInsufficientFunds):
		code = fiber.StatusBadRequest
	case errors.Is(err, yield.ErrNotOwner), errors.Is(err, ledger.ErrUnauthorized):
		code = fiber.StatusForbidden
	case errors.Is(err, yield.ErrNoYield), errors.Is(err, yield.ErrSnapshotLimit):
		code = fiber.StatusConflict
	case errors.Is(err, yield.ErrArithmeticOverflow),
		errors.Is(err, ledger.ErrBalanceOverflow),
		errors.Is(err, assetrecord.ErrFieldTooLong):
		code = fiber.StatusUnprocessableEntity
	}
	if code == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Str("path", c.Path()).Msg("settlement fault")
		return response.InternalError(c)
	}
	return response.Error(c, err.Error(), code, nil)
}

func assetID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

type createRequest struct {
	MetadataHash   string `json:"metadata_hash"`
	MetadataURI    string `json:"metadata_uri"`
	AnnualReturnBP uint16 `json:"annual_return_bp"`
	TotalTokens    uint64 `json:"total_tokens"`
	PricePerToken  uint64 `json:"price_per_token"`
}

// POST /api/v1/assets: 201 with the new asset; the caller is its owner.
func (h *Handlers) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.MetadataURI == "" {
		return response.BadRequest(c, "Missing required field: metadata_uri")
	}
	a, err := h.Service.CreateProperty(c.UserContext(), yield.CreateInput{
		Owner:          middleware.GetIdentity(c),
		MetadataHash:   req.MetadataHash,
		MetadataURI:    req.MetadataURI,
		AnnualReturnBP: req.AnnualReturnBP,
		TotalTokens:    req.TotalTokens,
		PricePerToken:  req.PricePerToken,
	})
	if err != nil {
		return writeError(c, err)
	}
	return response.SuccessCreated(c, "Property created", a, nil)
}

// GET /api/v1/assets
func (h *Handlers) List(c *fiber.Ctx) error {
	list, err := h.Service.ListAssets(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Assets fetched", list, fiber.Map{"count": len(list)})
}

// GET /api/v1/assets/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, ok := assetID(c)
	if !ok {
		return response.BadRequest(c, "Invalid asset id")
	}
	a, err := h.Service.GetAsset(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Asset fetched", a, nil)
}

// GET /api/v1/assets/:id/record: the encoded asset record, base64.
func (h *Handlers) Record(c *fiber.Ctx) error {
	id, ok := assetID(c)
	if !ok {
		return response.BadRequest(c, "Invalid asset id")
	}
	b, err := h.Service.Record(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Record fetched", fiber.Map{
		"asset_id": id,
		"encoding": "base64",
		"record":   base64.StdEncoding.EncodeToString(b),
	}, nil)
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

func parseAmount(c *fiber.Ctx) (uint64, bool) {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil || req.Amount == 0 {
		return 0, false
	}
	return req.Amount, true
}

// POST /api/v1/assets/:id/buy
func (h *Handlers) Buy(c *fiber.Ctx) error {
	id, ok := assetID(c)
	if !ok {
		return response.BadRequest(c, "Invalid asset id")
	}
	amount, ok := parseAmount(c)
	if !ok {
		return response.BadRequest(c, "amount must be a positive integer")
	}
	res, err := h.Service.BuyTokens(c.UserContext(), id, middleware.GetIdentity(c), amount)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Tokens purchased", res, nil)
}

// POST /api/v1/assets/:id/deposit-yield
func (h *Handlers) DepositYield(c *fiber.Ctx) error {
	id, ok := assetID(c)
	if !ok {
		return response.BadRequest(c, "Invalid asset id")
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	res, err := h.Service.DepositYield(c.UserContext(), id, middleware.GetIdentity(c), req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Yield deposited", res, nil)
}

// GET /api/v1/assets/:id/pending-yield: what a claim would pay the caller now.
func (h *Handlers) PendingYield(c *fiber.Ctx) error {
	id, ok := assetID(c)
	if !ok {
		return response.BadRequest(c, "Invalid asset id")
	}
	holder := middleware.GetIdentity(c)
	pending, err := h.Service.PendingYield(c.UserContext(), id, holder)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Pending yield", fiber.Map{"asset_id": id, "holder": holder, "pending": pending}, nil)
}

// POST /api/v1/assets/:id/claim-yield
func (h *Handlers) ClaimYield(c *fiber.Ctx) error {
	id, ok := assetID(c)
	if !ok {
		return response.BadRequest(c, "Invalid asset id")
	}
	holder := middleware.GetIdentity(c)
	paid, err := h.Service.ClaimYield(c.UserContext(), id, holder)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Yield claimed", fiber.Map{"asset_id": id, "holder": holder, "amount": paid}, nil)
}

type mintRequest struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

// POST /api/v1/assets/:id/mint-crosschain: owner only.
func (h *Handlers) MintCrosschain(c *fiber.Ctx) error {
	id, ok := assetID(c)
	if !ok {
		return response.BadRequest(c, "Invalid asset id")
	}
	var req mintRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Recipient == "" {
		return response.BadRequest(c, "Missing required field: recipient")
	}
	if err := h.Service.MintCrosschain(c.UserContext(), id, middleware.GetIdentity(c), req.Recipient, req.Amount); err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Bridge tokens minted", fiber.Map{
		"asset_id":  id,
		"recipient": req.Recipient,
		"amount":    req.Amount,
	}, nil)
}

// GET /api/v1/assets/:id/events
func (h *Handlers) Events(c *fiber.Ctx) error {
	id, ok := assetID(c)
	if !ok {
		return response.BadRequest(c, "Invalid asset id")
	}
	events, err := h.Service.Events(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Events fetched", events, fiber.Map{"count": len(events)})
}
