package feed

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFills(t *testing.T) {
	t.Run("single fill object", func(t *testing.T) {
		raw := []byte(`{"jsonrpc":"2.0","method":"subscription","params":{"channel":"fills.BTC-USD-PERP","data":{"id":"f1","market":"BTC-USD-PERP","side":"BUY","size":"0.01","price":"90000","realized_pnl":"0","fee":"1.80","created_at":1700000000000,"order_id":"o1"}}}`)

		msg, err := Decode(raw)
		require.NoError(t, err)

		fills, ok := msg.(FillsMessage)
		require.True(t, ok)
		require.Len(t, fills.Fills, 1)
		assert.Equal(t, "f1", fills.Fills[0].ID)
		assert.True(t, fills.Fills[0].Notional().Equal(decimal.NewFromInt(900)))
	})

	t.Run("fill array", func(t *testing.T) {
		raw := []byte(`{"jsonrpc":"2.0","method":"subscription","params":{"channel":"fills","data":[{"id":"f1","market":"BTC-USD-PERP","side":"BUY","size":"1","price":"10","realized_pnl":"0","fee":"0.1","created_at":1,"order_id":"o1"},{"id":"f2","market":"ETH-USD-PERP","side":"SELL","size":"2","price":"20","realized_pnl":"3","fee":"0.2","created_at":2,"order_id":"o2"}]}}`)

		msg, err := Decode(raw)
		require.NoError(t, err)

		fills, ok := msg.(FillsMessage)
		require.True(t, ok)
		assert.Len(t, fills.Fills, 2)
		assert.Equal(t, "ETH-USD-PERP", fills.Fills[1].Market)
	})
}

func TestDecodeOrders(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","method":"subscription","params":{"channel":"orders.ALL","data":{"id":"o1","market":"SOL-USD-PERP","side":"SELL","type":"LIMIT","size":"5","price":"150","status":"OPEN","created_at":1700000000000}}}`)

	msg, err := Decode(raw)
	require.NoError(t, err)

	orders, ok := msg.(OrdersMessage)
	require.True(t, ok)
	require.Len(t, orders.Orders, 1)
	assert.True(t, orders.Orders[0].Status.IsOpen())
	assert.False(t, orders.Orders[0].Status.IsTerminal())
}

func TestDecodePositions(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","method":"subscription","params":{"channel":"positions","data":[{"market":"BTC-USD-PERP","side":"LONG","size":"0.5","average_entry_price":"88000","unrealized_pnl":"12.5"}]}}`)

	msg, err := Decode(raw)
	require.NoError(t, err)

	positions, ok := msg.(PositionsMessage)
	require.True(t, ok)
	require.Len(t, positions.Positions, 1)
	assert.False(t, positions.Positions[0].IsClosed())
}

func TestDecodeAccount(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","method":"subscription","params":{"channel":"account","data":{"account_value":"10500.25","unrealized_pnl":"-12.5"}}}`)

	msg, err := Decode(raw)
	require.NoError(t, err)

	account, ok := msg.(AccountMessage)
	require.True(t, ok)
	assert.True(t, account.Account.Value().Equal(decimal.RequireFromString("10500.25")))
}

func TestDecodeBalanceEvents(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","method":"subscription","params":{"channel":"balance_events","data":{"id":"b1","kind":"FUNDING","amount":"-0.42","created_at":1700000000000}}}`)

	msg, err := Decode(raw)
	require.NoError(t, err)

	events, ok := msg.(BalanceEventsMessage)
	require.True(t, ok)
	require.Len(t, events.Events, 1)
	assert.Equal(t, "FUNDING", events.Events[0].Kind)
}

func TestDecodeReplies(t *testing.T) {
	t.Run("auth success", func(t *testing.T) {
		msg, err := Decode([]byte(`{"jsonrpc":"2.0","id":0,"result":{}}`))
		require.NoError(t, err)

		reply, ok := msg.(AuthReply)
		require.True(t, ok)
		assert.NoError(t, reply.Err)
	})

	t.Run("auth failure", func(t *testing.T) {
		msg, err := Decode([]byte(`{"jsonrpc":"2.0","id":0,"error":{"code":-32600,"message":"invalid bearer"}}`))
		require.NoError(t, err)

		reply, ok := msg.(AuthReply)
		require.True(t, ok)
		require.Error(t, reply.Err)
		assert.Contains(t, reply.Err.Error(), "invalid bearer")
	})

	t.Run("subscription confirmation", func(t *testing.T) {
		msg, err := Decode([]byte(`{"jsonrpc":"2.0","id":3,"result":{"channel":"balance_events"}}`))
		require.NoError(t, err)

		reply, ok := msg.(SubscribeReply)
		require.True(t, ok)
		assert.Equal(t, RequestIDBalanceEvents, reply.ID)
	})
}

func TestDecodeRejectsUnknownFrames(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"unknown channel", `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"klines","data":{}}}`},
		{"unknown reply id", `{"jsonrpc":"2.0","id":42,"result":{}}`},
		{"no id no method", `{"jsonrpc":"2.0"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Decode([]byte(tc.raw))
			assert.Error(t, err)
			assert.Nil(t, msg)
		})
	}
}

func TestDecodeUnknownFrameSentinel(t *testing.T) {
	_, err := Decode([]byte(`{"jsonrpc":"2.0","method":"subscription","params":{"channel":"klines","data":{}}}`))
	assert.True(t, errors.Is(err, ErrUnknownFrame))
}

func TestSubscribeRequests(t *testing.T) {
	requests := SubscribeRequests()
	require.Len(t, requests, 5)

	assert.Equal(t, ChannelAccount, requests[0].Params.Channel)
	assert.Equal(t, ChannelOrdersAll, requests[4].Params.Channel)
	for i, req := range requests {
		assert.Equal(t, int64(i+1), req.ID)
		assert.Equal(t, "subscribe", req.Method)
	}
}
