package net

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/FabioSeixas/exchange/internal/common"
	"github.com/google/uuid"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short for specified username length")
	ErrInvalidSide        = errors.New("invalid order side")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	NewOrder
	BookQuery
)

type ReportMessageType int

const (
	ExecutionReport ReportMessageType = iota
	ErrorReport
	BookReport
)

type Message interface {
	GetType() MessageType
}

// Message format constants
const (
	BaseMessageHeaderLen     = 2
	NewOrderMessageHeaderLen = 1 + 8 + 8 + 1
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, errors.New("message too short to contain header")
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case NewOrder:
		return parseNewOrder(msg)
	case BookQuery:
		return BaseMessage{TypeOf: BookQuery}, nil
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

type NewOrderMessage struct {
	BaseMessage
	Side        common.Side // 1 byte
	Price       uint64      // 8 bytes
	Size        uint64      // 8 bytes
	UsernameLen uint8       // 1 byte
	Username    string      // n bytes
}

// OrderRequest mints the exchange-side order id and shapes the message for
// the engine. The book never generates ids; this is where they come from.
func (o *NewOrderMessage) OrderRequest() common.OrderRequest {
	return common.OrderRequest{
		ID:    uuid.New().String(),
		Side:  o.Side,
		Price: o.Price,
		Size:  o.Size,
		Owner: o.Username,
	}
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}

	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}

	m.Side = common.Side(msg[0])
	if m.Side != common.Bid && m.Side != common.Ask {
		return NewOrderMessage{}, ErrInvalidSide
	}
	m.Price = binary.BigEndian.Uint64(msg[1:9])
	m.Size = binary.BigEndian.Uint64(msg[9:17])
	m.UsernameLen = uint8(msg[17])

	// Calculate expected total length.
	expectedTotalLen := NewOrderMessageHeaderLen + int(m.UsernameLen)
	if len(msg) < expectedTotalLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m.Username = string(msg[18 : 18+int(m.UsernameLen)])

	return m, nil
}

// Report is the single wire record sent back to clients: execution reports on
// fills, error reports on rejections, and book reports answering a BookQuery.
type Report struct {
	MessageType     ReportMessageType // 1 byte
	Side            common.Side       // 1 byte
	Timestamp       uint64            // 8 bytes
	Quantity        uint64            // 8 bytes
	Price           uint64            // 8 bytes
	BestBid         uint64            // 8 bytes
	BestAsk         uint64            // 8 bytes
	CounterpartyLen uint16            // 2 bytes
	ErrStrLen       uint32            // 4 bytes
	UUID            string            // 36 bytes
	Err             string            // n bytes
	Counterparty    string            // n bytes
}

const reportFixedHeaderLen = 1 + 1 + 8 + 8 + 8 + 8 + 8 + 2 + 4 + 36

// Serialize converts the report to be sent on the wire.
func (r *Report) Serialize() []byte {
	totalSize := reportFixedHeaderLen + len(r.Err) + len(r.Counterparty)

	buf := make([]byte, totalSize)
	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Side)
	binary.BigEndian.PutUint64(buf[2:10], r.Timestamp)
	binary.BigEndian.PutUint64(buf[10:18], r.Quantity)
	binary.BigEndian.PutUint64(buf[18:26], r.Price)
	binary.BigEndian.PutUint64(buf[26:34], r.BestBid)
	binary.BigEndian.PutUint64(buf[34:42], r.BestAsk)
	binary.BigEndian.PutUint16(buf[42:44], r.CounterpartyLen)
	binary.BigEndian.PutUint32(buf[44:48], r.ErrStrLen)

	// Pack the UUID into its fixed slot; copy never panics on a short
	// string, the slot is simply zero padded.
	copy(buf[48:84], r.UUID)

	offset := reportFixedHeaderLen
	if r.ErrStrLen > 0 {
		copy(buf[offset:], r.Err)
	}
	offset += int(r.ErrStrLen)
	if r.CounterpartyLen > 0 {
		copy(buf[offset:], r.Counterparty)
	}
	return buf
}

// generateWireTradeReports generates both execution reports for one trade,
// each addressed to the respective party and naming the other as
// counterparty.
func generateWireTradeReports(trade common.Trade) (taker, maker []byte) {
	createReport := func(id, counterparty string, side common.Side) Report {
		return Report{
			MessageType:     ExecutionReport,
			Side:            side,
			Timestamp:       uint64(trade.Timestamp.Unix()),
			Quantity:        trade.Size,
			Price:           trade.Price,
			CounterpartyLen: uint16(len(counterparty)),
			UUID:            id,
			Counterparty:    counterparty,
		}
	}

	// The taker is always the incoming ask, the maker the resting bid.
	r1 := createReport(trade.TakerID, trade.MakerOwner, common.Ask)
	r2 := createReport(trade.MakerID, trade.TakerOwner, common.Bid)
	return r1.Serialize(), r2.Serialize()
}

func generateWireErrorReport(err error) []byte {
	errStr := err.Error()
	report := Report{
		MessageType: ErrorReport,
		Timestamp:   uint64(time.Now().UnixNano()),
		ErrStrLen:   uint32(len(errStr)),
		Err:         errStr,
	}
	return report.Serialize()
}

// generateWireBookReport answers a BookQuery with the cached best prices and
// the per-side level counts packed into the quantity slot.
func generateWireBookReport(bestBid, bestAsk uint64, bidLevels, askLevels int) []byte {
	report := Report{
		MessageType: BookReport,
		Timestamp:   uint64(time.Now().UnixNano()),
		BestBid:     bestBid,
		BestAsk:     bestAsk,
		Quantity:    uint64(bidLevels)<<32 | uint64(askLevels),
	}
	return report.Serialize()
}
