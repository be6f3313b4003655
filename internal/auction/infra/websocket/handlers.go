package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/cristianortiz/auctionEngine/internal/auction/application"
	"github.com/cristianortiz/auctionEngine/internal/shared/websocket"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

var errNotUpgrade = errors.New("websocket upgrade required")

// AuctionWSHandler subscribes websocket clients to the updates of one lot.
type AuctionWSHandler struct {
	ctx        context.Context
	lotService application.LotService
	hub        *websocket.Hub
}

// NewAuctionWSHandler creates a new instance of AuctionWSHandler. ctx bounds the
// lifetime of every subscription; cancelling it closes them.
func NewAuctionWSHandler(ctx context.Context, lotService application.LotService, hub *websocket.Hub) *AuctionWSHandler {
	return &AuctionWSHandler{ctx: ctx, lotService: lotService, hub: hub}
}

// RegisterRoutes mounts GET /ws/lots/:id.
func (h *AuctionWSHandler) RegisterRoutes(router fiber.Router, middleware ...fiber.Handler) {
	handlers := append([]fiber.Handler{}, middleware...)
	handlers = append(handlers, h.requireUpgrade, fiberws.New(h.serve))
	router.Get("/ws/lots/:id", handlers...)
}

func (h *AuctionWSHandler) requireUpgrade(c *fiber.Ctx) error {
	if !fiberws.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": errNotUpgrade.Error()})
	}
	return c.Next()
}

func (h *AuctionWSHandler) serve(conn *fiberws.Conn) {
	lotID, err := strconv.ParseInt(conn.Params("id"), 10, 64)
	if err != nil || lotID <= 0 {
		h.reject(conn, "Invalid id")
		return
	}

	lot, err := h.lotService.GetLot(h.ctx, lotID)
	if err != nil {
		log.Error("Failed to load lot for subscription", zap.Int64("lotID", lotID), zap.Error(err))
		h.reject(conn, "Failed to load lot")
		return
	}
	if lot == nil {
		h.reject(conn, "Lot not found")
		return
	}

	initial, err := json.Marshal(newLotMessage(MessageTypeInitialState, application.NewLotDTO(lot)))
	if err != nil {
		h.reject(conn, "Failed to serialize lot")
		return
	}

	client := websocket.NewClient(h.hub, conn, lotID)
	client.Send <- initial
	if !h.hub.RegisterClient(client) {
		h.reject(conn, "Too many subscribers")
		return
	}

	go client.WritePump(h.ctx)
	// returning closes the connection, so the read side runs on this goroutine
	client.ReadPump()
}

func (h *AuctionWSHandler) reject(conn *fiberws.Conn, text string) {
	if data, err := json.Marshal(newErrorMessage(text)); err == nil {
		_ = conn.WriteMessage(fiberws.TextMessage, data)
	}
	_ = conn.WriteMessage(fiberws.CloseMessage, fiberws.FormatCloseMessage(fiberws.ClosePolicyViolation, text))
}
