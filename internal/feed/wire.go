// Package feed implements the venue's JSON-RPC style wire contract:
// id-correlated replies to auth/subscribe requests and method
// "subscription" pushes carrying channel payloads.
package feed

import (
	"encoding/json"
	"fmt"
)

// Channel names understood by the decoder. Fills and orders use the
// "<channel>.<market>" form for per-market streams; subscriptions use
// the ALL wildcard.
const (
	ChannelAccount       = "account"
	ChannelPositions     = "positions"
	ChannelBalanceEvents = "balance_events"
	ChannelFills         = "fills"
	ChannelOrders        = "orders"
	ChannelFillsAll      = "fills.ALL"
	ChannelOrdersAll     = "orders.ALL"
)

// Request ids are reserved and fixed: 0 authenticates, 1-5 subscribe.
const (
	RequestIDAuth int64 = iota
	RequestIDAccount
	RequestIDPositions
	RequestIDBalanceEvents
	RequestIDFills
	RequestIDOrders
)

// Envelope is the inbound frame shape. Exactly two variants are
// understood: id-based replies (Result or Error set) and
// method=="subscription" pushes (Params set).
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  *PushParams     `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// PushParams carries a subscription push payload.
type PushParams struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// RPCError is the error object of a failed reply.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Request is an outbound control frame.
type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  RequestParams `json:"params"`
	ID      int64         `json:"id"`
}

// RequestParams carries either a bearer credential (auth) or a channel
// name (subscribe).
type RequestParams struct {
	Bearer  string `json:"bearer,omitempty"`
	Channel string `json:"channel,omitempty"`
}

// AuthRequest builds the auth frame for the given bearer token.
func AuthRequest(bearer string) Request {
	return Request{
		JSONRPC: "2.0",
		Method:  "auth",
		Params:  RequestParams{Bearer: bearer},
		ID:      RequestIDAuth,
	}
}

// SubscribeRequests builds the fixed set of channel subscriptions
// issued once authentication succeeds.
func SubscribeRequests() []Request {
	channels := []struct {
		name string
		id   int64
	}{
		{ChannelAccount, RequestIDAccount},
		{ChannelPositions, RequestIDPositions},
		{ChannelBalanceEvents, RequestIDBalanceEvents},
		{ChannelFillsAll, RequestIDFills},
		{ChannelOrdersAll, RequestIDOrders},
	}

	requests := make([]Request, 0, len(channels))
	for _, ch := range channels {
		requests = append(requests, Request{
			JSONRPC: "2.0",
			Method:  "subscribe",
			Params:  RequestParams{Channel: ch.name},
			ID:      ch.id,
		})
	}
	return requests
}
