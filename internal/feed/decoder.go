package feed

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/perpdash/internal/domain"
)

// ErrUnknownFrame marks frames whose envelope matches neither a known
// channel push nor a reply to a reserved request id. Callers drop such
// frames with a diagnostic; they are never fatal to the session.
var ErrUnknownFrame = errors.New("unknown frame")

// Message is a decoded inbound frame.
type Message interface {
	message()
}

// FillsMessage carries one or more trade executions.
type FillsMessage struct {
	Fills []domain.Fill
}

// OrdersMessage carries one or more order lifecycle updates.
type OrdersMessage struct {
	Orders []domain.Order
}

// PositionsMessage carries one or more position snapshots.
type PositionsMessage struct {
	Positions []domain.Position
}

// AccountMessage carries an account-wide summary snapshot.
type AccountMessage struct {
	Account domain.AccountSummary
}

// BalanceEventsMessage carries informational balance notifications.
// Handlers log these and mutate nothing.
type BalanceEventsMessage struct {
	Events []domain.BalanceEvent
}

// AuthReply is the reply to the auth request (id 0). Err is nil on
// success and carries the venue's error otherwise.
type AuthReply struct {
	Err error
}

// SubscribeReply confirms a channel subscription. Confirmations are
// logged but not required for correctness.
type SubscribeReply struct {
	ID int64
}

func (FillsMessage) message()         {}
func (OrdersMessage) message()        {}
func (PositionsMessage) message()     {}
func (AccountMessage) message()       {}
func (BalanceEventsMessage) message() {}
func (AuthReply) message()            {}
func (SubscribeReply) message()       {}

// Decode parses a raw transport frame into a typed message.
func Decode(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "parse frame")
	}

	switch {
	case env.Method == "subscription" && env.Params != nil:
		return decodePush(env.Params)
	case env.ID != nil:
		return decodeReply(&env)
	default:
		return nil, ErrUnknownFrame
	}
}

func decodePush(params *PushParams) (Message, error) {
	channel := params.Channel
	switch {
	case channel == ChannelAccount:
		var account domain.AccountSummary
		if err := json.Unmarshal(params.Data, &account); err != nil {
			return nil, errors.Wrap(err, "decode account summary")
		}
		return AccountMessage{Account: account}, nil

	case channel == ChannelPositions:
		positions, err := oneOrMany[domain.Position](params.Data)
		if err != nil {
			return nil, errors.Wrap(err, "decode positions")
		}
		return PositionsMessage{Positions: positions}, nil

	case channel == ChannelBalanceEvents:
		events, err := oneOrMany[domain.BalanceEvent](params.Data)
		if err != nil {
			return nil, errors.Wrap(err, "decode balance events")
		}
		return BalanceEventsMessage{Events: events}, nil

	case channel == ChannelFills || strings.HasPrefix(channel, ChannelFills+"."):
		fills, err := oneOrMany[domain.Fill](params.Data)
		if err != nil {
			return nil, errors.Wrap(err, "decode fills")
		}
		return FillsMessage{Fills: fills}, nil

	case channel == ChannelOrders || strings.HasPrefix(channel, ChannelOrders+"."):
		orders, err := oneOrMany[domain.Order](params.Data)
		if err != nil {
			return nil, errors.Wrap(err, "decode orders")
		}
		return OrdersMessage{Orders: orders}, nil

	default:
		return nil, errors.Wrapf(ErrUnknownFrame, "channel %q", channel)
	}
}

func decodeReply(env *Envelope) (Message, error) {
	id := *env.ID
	if id == RequestIDAuth {
		if env.Error != nil {
			return AuthReply{Err: env.Error}, nil
		}
		return AuthReply{}, nil
	}
	if id >= RequestIDAccount && id <= RequestIDOrders {
		return SubscribeReply{ID: id}, nil
	}
	return nil, errors.Wrapf(ErrUnknownFrame, "reply id %d", id)
}

// oneOrMany decodes payloads that arrive either as a single object or
// as an array of objects.
func oneOrMany[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty payload")
	}
	if trimmed[0] == '[' {
		var many []T
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return nil, err
		}
		return many, nil
	}

	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}
