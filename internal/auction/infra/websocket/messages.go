package websocket

import (
	"github.com/cristianortiz/auctionEngine/internal/auction/application"
)

// MessageType defines ws type message
type MessageType string

const (
	MessageTypeLotUpdate    MessageType = "lot_update"    // lot state after an accepted bid or an update
	MessageTypeInitialState MessageType = "initial_state" // lot state sent once on subscribe
	MessageTypeError        MessageType = "error"
)

// BaseMessage is base struct for all the WS messages, includes a Type field for identify the message type
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// LotMessage carries a lot snapshot.
type LotMessage struct {
	BaseMessage
	Payload application.LotDTO `json:"payload"`
}

type ErrorMessage struct {
	BaseMessage
	Payload struct {
		Error string `json:"error"`
	} `json:"payload"`
}

func newLotMessage(t MessageType, dto application.LotDTO) LotMessage {
	return LotMessage{BaseMessage: BaseMessage{Type: t}, Payload: dto}
}

func newErrorMessage(text string) ErrorMessage {
	msg := ErrorMessage{BaseMessage: BaseMessage{Type: MessageTypeError}}
	msg.Payload.Error = text
	return msg
}
