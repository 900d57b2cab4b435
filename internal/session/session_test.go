package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/perpdash/internal/domain"
	"github.com/vadiminshakov/perpdash/internal/feed"
)

type recordingEngine struct {
	mu        sync.Mutex
	fills     []domain.Fill
	orders    []domain.Order
	positions []domain.Position
	accounts  []domain.AccountSummary
	states    []string
	authErrs  []string
}

func (r *recordingEngine) ApplyFills(fills []domain.Fill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fills = append(r.fills, fills...)
}

func (r *recordingEngine) ApplyOrders(orders []domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, orders...)
}

func (r *recordingEngine) ApplyPositions(positions []domain.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions = append(r.positions, positions...)
}

func (r *recordingEngine) ApplyAccount(account domain.AccountSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = append(r.accounts, account)
}

func (r *recordingEngine) SetConnection(state, authErr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	if authErr != "" {
		r.authErrs = append(r.authErrs, authErr)
	}
}

func (r *recordingEngine) fillCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fills)
}

// fakeVenue upgrades connections and records inbound control frames.
type fakeVenue struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conn     *websocket.Conn
	requests []feed.Request
	gotAuth  chan feed.Request
	rejected bool
}

func newFakeVenue(t *testing.T) *fakeVenue {
	return &fakeVenue{t: t, gotAuth: make(chan feed.Request, 4)}
}

func (v *fakeVenue) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := v.upgrader.Upgrade(w, r, nil)
	require.NoError(v.t, err)

	v.mu.Lock()
	v.conn = conn
	v.mu.Unlock()

	for {
		var req feed.Request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		v.mu.Lock()
		v.requests = append(v.requests, req)
		rejected := v.rejected
		v.mu.Unlock()

		if req.Method == "auth" {
			v.gotAuth <- req
			if rejected {
				v.write(`{"jsonrpc":"2.0","id":0,"error":{"code":401,"message":"expired bearer"}}`)
			} else {
				v.write(`{"jsonrpc":"2.0","id":0,"result":{}}`)
			}
		}
	}
}

func (v *fakeVenue) write(frame string) {
	v.mu.Lock()
	conn := v.conn
	v.mu.Unlock()
	require.NotNil(v.t, conn)
	require.NoError(v.t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (v *fakeVenue) subscribedChannels() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var channels []string
	for _, req := range v.requests {
		if req.Method == "subscribe" {
			channels = append(channels, req.Params.Channel)
		}
	}
	return channels
}

func startSession(t *testing.T, venue *fakeVenue, engine Engine, bootstrap Bootstrapper) (*Session, context.CancelFunc) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(venue.handler))
	t.Cleanup(srv.Close)

	s := New(Config{
		URL:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		Engine:    engine,
		Bootstrap: bootstrap,
		Logger:    zap.NewNop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = s.Run(ctx, "bearer-1")
	}()
	t.Cleanup(func() {
		cancel()
	})
	return s, cancel
}

func TestSessionAuthenticatesAndSubscribes(t *testing.T) {
	venue := newFakeVenue(t)
	engine := &recordingEngine{}
	s, _ := startSession(t, venue, engine, nil)

	auth := <-venue.gotAuth
	assert.Equal(t, "bearer-1", auth.Params.Bearer)
	assert.Equal(t, feed.RequestIDAuth, auth.ID)

	require.Eventually(t, func() bool {
		return len(venue.subscribedChannels()) == 5
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{
		feed.ChannelAccount,
		feed.ChannelPositions,
		feed.ChannelBalanceEvents,
		feed.ChannelFillsAll,
		feed.ChannelOrdersAll,
	}, venue.subscribedChannels())
	assert.Equal(t, StateSubscribed, s.State())
}

func TestSessionDispatchesPushes(t *testing.T) {
	venue := newFakeVenue(t)
	engine := &recordingEngine{}
	_, _ = startSession(t, venue, engine, nil)

	<-venue.gotAuth
	require.Eventually(t, func() bool {
		return len(venue.subscribedChannels()) == 5
	}, time.Second, 10*time.Millisecond)

	venue.write(`{"jsonrpc":"2.0","method":"subscription","params":{"channel":"fills.ALL","data":{"id":"f1","market":"BTC-USD-PERP","side":"BUY","size":"1","price":"100","realized_pnl":"0","fee":"0.1","created_at":1,"order_id":"o1"}}}`)
	venue.write(`{"jsonrpc":"2.0","method":"subscription","params":{"channel":"account","data":{"account_value":"5000","unrealized_pnl":"1"}}}`)
	// garbage in between must not stop the stream
	venue.write(`not even json`)
	venue.write(`{"jsonrpc":"2.0","method":"subscription","params":{"channel":"positions","data":{"market":"BTC-USD-PERP","side":"LONG","size":"1","average_entry_price":"100","unrealized_pnl":"1"}}}`)

	require.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return len(engine.fills) == 1 && len(engine.accounts) == 1 && len(engine.positions) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSessionAuthFailureKeepsTransportOpen(t *testing.T) {
	venue := newFakeVenue(t)
	venue.rejected = true
	engine := &recordingEngine{}
	s, _ := startSession(t, venue, engine, nil)

	<-venue.gotAuth
	require.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return len(engine.authErrs) > 0
	}, time.Second, 10*time.Millisecond)

	engine.mu.Lock()
	authErr := engine.authErrs[0]
	engine.mu.Unlock()
	assert.Contains(t, authErr, "expired bearer")
	assert.Equal(t, StateAuthenticating, s.State())
	assert.Empty(t, venue.subscribedChannels())

	// stream still delivers after rejection; session did not close it
	venue.write(`{"jsonrpc":"2.0","method":"subscription","params":{"channel":"fills","data":{"id":"f1","market":"BTC-USD-PERP","side":"BUY","size":"1","price":"100","realized_pnl":"0","fee":"0","created_at":1,"order_id":"o1"}}}`)
	require.Eventually(t, func() bool { return engine.fillCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSessionRefreshReauthenticatesInPlace(t *testing.T) {
	venue := newFakeVenue(t)
	engine := &recordingEngine{}
	s, _ := startSession(t, venue, engine, nil)

	<-venue.gotAuth
	require.Eventually(t, func() bool { return s.State() == StateSubscribed }, time.Second, 10*time.Millisecond)
	subscribes := len(venue.subscribedChannels())

	require.NoError(t, s.Refresh("bearer-2"))
	refreshed := <-venue.gotAuth
	assert.Equal(t, "bearer-2", refreshed.Params.Bearer)

	// still subscribed, and no duplicate subscriptions were issued
	require.Eventually(t, func() bool { return s.State() == StateSubscribed }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, subscribes, len(venue.subscribedChannels()))
}

func TestSessionDuplicateRunIgnored(t *testing.T) {
	venue := newFakeVenue(t)
	engine := &recordingEngine{}
	s, _ := startSession(t, venue, engine, nil)

	<-venue.gotAuth
	require.Eventually(t, func() bool { return s.State() == StateSubscribed }, time.Second, 10*time.Millisecond)

	// second Run on a live session returns immediately without dialing
	err := s.Run(context.Background(), "bearer-1")
	assert.NoError(t, err)
	assert.Equal(t, StateSubscribed, s.State())
}

type fakeVenueAPI struct {
	positions []domain.Position
	orders    []domain.Order
	posErr    error
	orderErr  error
}

func (f *fakeVenueAPI) OpenPositions(context.Context) ([]domain.Position, error) {
	return f.positions, f.posErr
}

func (f *fakeVenueAPI) OpenOrders(context.Context) ([]domain.Order, error) {
	return f.orders, f.orderErr
}

func TestBootstrapSeedsStores(t *testing.T) {
	engine := &recordingEngine{}
	api := &fakeVenueAPI{
		positions: []domain.Position{{Market: "BTC-USD-PERP", Side: domain.PositionSideLong}},
		orders:    []domain.Order{{ID: "o1", Market: "BTC-USD-PERP", Status: domain.OrderStatusOpen}},
	}

	NewBootstrap(api, engine, zap.NewNop()).Bootstrap(context.Background())

	assert.Len(t, engine.positions, 1)
	assert.Len(t, engine.orders, 1)
}

func TestBootstrapFetchFailureIsNonFatal(t *testing.T) {
	engine := &recordingEngine{}
	api := &fakeVenueAPI{
		posErr: errors.New("status 502"),
		orders: []domain.Order{{ID: "o1", Market: "BTC-USD-PERP", Status: domain.OrderStatusOpen}},
	}

	NewBootstrap(api, engine, zap.NewNop()).Bootstrap(context.Background())

	// positions failed, orders still seeded from zero
	assert.Empty(t, engine.positions)
	assert.Len(t, engine.orders, 1)
}
