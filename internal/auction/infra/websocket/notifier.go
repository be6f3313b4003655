package websocket

import (
	"encoding/json"

	"github.com/cristianortiz/auctionEngine/internal/auction/application"
	"github.com/cristianortiz/auctionEngine/internal/auction/domain"
	"github.com/cristianortiz/auctionEngine/internal/shared/logger"
	"github.com/cristianortiz/auctionEngine/internal/shared/websocket"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Broadcaster is the part of the hub the notifier needs.
type Broadcaster interface {
	BroadcastMessageToLot(lotID int64, data []byte)
}

// LotNotifier implements domain.LotUpdateNotifier over the websocket hub.
type LotNotifier struct {
	hub Broadcaster
}

var _ domain.LotUpdateNotifier = (*LotNotifier)(nil)

var _ Broadcaster = (*websocket.Hub)(nil)

func NewLotNotifier(hub Broadcaster) *LotNotifier {
	return &LotNotifier{hub: hub}
}

// NotifyLotUpdated serializes the lot and sends to all lot clients.
func (n *LotNotifier) NotifyLotUpdated(lot *domain.Lot) {
	data, err := json.Marshal(newLotMessage(MessageTypeLotUpdate, application.NewLotDTO(lot)))
	if err != nil {
		log.Error("failed to marshal lot update", zap.Int64("lotID", lot.ID), zap.Error(err))
		return
	}
	n.hub.BroadcastMessageToLot(lot.ID, data)
}
