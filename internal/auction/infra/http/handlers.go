// Package http exposes the lot operations as fiber routes.
package http

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/cristianortiz/auctionEngine/internal/auction/application"
	"github.com/cristianortiz/auctionEngine/internal/auction/domain"
	"github.com/cristianortiz/auctionEngine/internal/auth"
	"github.com/cristianortiz/auctionEngine/internal/registry"
	"github.com/cristianortiz/auctionEngine/internal/shared/db"
	"github.com/cristianortiz/auctionEngine/internal/shared/logger"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Method names checked against the payment service and announced to the registry.
const (
	MethodListLots  = "ListLots"
	MethodGetLot    = "GetLot"
	MethodCreateLot = "CreateLot"
	MethodUpdateLot = "UpdateLot"
	MethodDeleteLot = "DeleteLot"
	MethodPlaceBid  = "PlaceBid"
	MethodHealth    = "Health"
)

type LotHandler struct {
	lotService application.LotService
	verifier   auth.TokenVerifier
}

func NewLotHandler(lotService application.LotService, verifier auth.TokenVerifier) *LotHandler {
	return &LotHandler{lotService: lotService, verifier: verifier}
}

func (h *LotHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/lots", h.guard(MethodListLots), h.listLots)
	router.Get("/lots/:id", h.guard(MethodGetLot), h.getLot)
	router.Post("/lots", h.guard(MethodCreateLot), h.createLot)
	router.Put("/lots/:id", h.guard(MethodUpdateLot), h.updateLot)
	router.Delete("/lots/:id", h.guard(MethodDeleteLot), h.deleteLot)
	router.Post("/lots/:id/bid", h.guard(MethodPlaceBid), h.placeBid)
}

func (h *LotHandler) guard(method string) fiber.Handler {
	return auth.RequireAuth(h.verifier, method)
}

// Methods describes the routes for the service registry.
func Methods() []registry.Method {
	return []registry.Method{
		{MethodName: MethodListLots},
		{MethodName: MethodGetLot, Arguments: []registry.Argument{
			registry.Arg(1, "id", "int", true),
		}},
		{MethodName: MethodCreateLot, Arguments: []registry.Argument{
			registry.Arg(1, "name", "string", true),
			registry.Arg(2, "description", "string", false),
			registry.Arg(3, "start_price", "decimal", true),
			registry.Arg(4, "owner_id", "string", true),
			registry.Arg(5, "auction_end_date", "timestamp", false),
		}},
		{MethodName: MethodUpdateLot, Arguments: []registry.Argument{
			registry.Arg(1, "id", "int", true),
			registry.Arg(2, "name", "string", false),
			registry.Arg(3, "description", "string", false),
			registry.Arg(4, "owner_id", "string", false),
			registry.Arg(5, "auction_end_date", "timestamp", false),
		}},
		{MethodName: MethodDeleteLot, Arguments: []registry.Argument{
			registry.Arg(1, "id", "int", true),
		}},
		{MethodName: MethodPlaceBid, Arguments: []registry.Argument{
			registry.Arg(1, "id", "int", true),
			registry.Arg(2, "amount", "decimal", true),
		}},
		{MethodName: MethodHealth},
	}
}

func (h *LotHandler) listLots(c *fiber.Ctx) error {
	lots, err := h.lotService.ListLots(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(application.NewLotDTOs(lots))
}

func (h *LotHandler) getLot(c *fiber.Ctx) error {
	id, err := lotID(c)
	if err != nil {
		return writeError(c, err)
	}
	lot, err := h.lotService.GetLot(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	if lot == nil {
		return notFound(c)
	}
	return c.JSON(application.NewLotDTO(lot))
}

func (h *LotHandler) createLot(c *fiber.Ctx) error {
	fields, err := decodeLotFields(c.Body())
	if err != nil {
		return writeError(c, err)
	}
	var in domain.LotInput
	if err := fields.applyTo(&in); err != nil {
		return writeError(c, err)
	}

	created, err := h.lotService.CreateLot(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(application.NewLotDTO(created))
}

// updateLot applies the members present in the body over the stored lot, then
// replaces it as a whole.
func (h *LotHandler) updateLot(c *fiber.Ctx) error {
	id, err := lotID(c)
	if err != nil {
		return writeError(c, err)
	}
	lot, err := h.lotService.GetLot(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	if lot == nil {
		return notFound(c)
	}

	fields, err := decodeLotFields(c.Body())
	if err != nil {
		return writeError(c, err)
	}
	in := inputFromLot(lot)
	if err := fields.applyTo(&in); err != nil {
		return writeError(c, err)
	}

	updated, err := h.lotService.UpdateLot(c.UserContext(), id, in)
	if err != nil {
		return writeError(c, err)
	}
	if updated == nil {
		// deleted between the read and the write
		return notFound(c)
	}
	return c.JSON(application.NewLotDTO(updated))
}

func (h *LotHandler) deleteLot(c *fiber.Ctx) error {
	id, err := lotID(c)
	if err != nil {
		return writeError(c, err)
	}
	removed, err := h.lotService.DeleteLot(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	if !removed {
		return notFound(c)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *LotHandler) placeBid(c *fiber.Ctx) error {
	id, err := lotID(c)
	if err != nil {
		return writeError(c, err)
	}
	var req bidRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return writeError(c, errInvalidPayload)
	}
	if req.Amount == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing amount"})
	}

	lot, err := h.lotService.PlaceBid(c.UserContext(), application.PlaceBidDTO{LotID: id, Amount: *req.Amount})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(application.NewLotDTO(lot))
}

func lotID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidLotID
	}
	return id, nil
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Lot not found"})
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidPayload), errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrLotNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrBidAmountTooLow), errors.Is(err, domain.ErrAuctionEnded):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrConcurrentModification):
		return fiber.StatusConflict
	case errors.Is(err, db.ErrConnection):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// messageFor returns the caller-facing text: the rule that failed for domain
// errors, the backend text for rejected statements.
func messageFor(err error) string {
	var qe *db.QueryError
	switch {
	case errors.Is(err, errInvalidPayload):
		return "Invalid JSON payload"
	case errors.Is(err, domain.ErrValidation):
		return err.Error()
	case errors.Is(err, domain.ErrLotNotFound):
		return "Lot not found"
	case errors.Is(err, domain.ErrBidAmountTooLow):
		return domain.ErrBidAmountTooLow.Error()
	case errors.Is(err, domain.ErrAuctionEnded):
		return domain.ErrAuctionEnded.Error()
	case errors.Is(err, domain.ErrConcurrentModification):
		return domain.ErrConcurrentModification.Error()
	case errors.As(err, &qe):
		return qe.Message
	case errors.Is(err, db.ErrConnection):
		return "database unavailable"
	default:
		return "internal error"
	}
}

func writeError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Error("Lot request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(fiber.Map{"error": messageFor(err)})
}
