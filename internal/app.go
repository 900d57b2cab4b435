// Package internal wires the daemon: wallet auth, the venue feed
// session with reconnection, the aggregation engine and the snapshot
// journal the dashboard reads from.
package internal

import (
	"context"
	"os"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/perpdash/config"
	"github.com/vadiminshakov/perpdash/internal/clients"
	"github.com/vadiminshakov/perpdash/internal/domain"
	"github.com/vadiminshakov/perpdash/internal/engine"
	"github.com/vadiminshakov/perpdash/internal/services/simulator"
	"github.com/vadiminshakov/perpdash/internal/session"
	"github.com/vadiminshakov/perpdash/internal/storage/snapshots"
)

// devPrivateKey signs auth requests in simulation mode, where the
// synthetic venue accepts any signature. Never use it against a live
// venue: the key is a public test vector.
const devPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// resetAfter treats a connection that survived this long as healthy,
// resetting the reconnect backoff.
const resetAfter = time.Minute

// App runs the feed pipeline until its context is cancelled.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	store  *snapshots.WALStore
	eng    *engine.Engine
}

// NewApp builds the pipeline around an existing snapshot store. The
// store outlives reconnects; the dashboard server shares it.
func NewApp(cfg config.Config, store *snapshots.WALStore, logger *zap.Logger) *App {
	app := &App{cfg: cfg, logger: logger, store: store}
	app.eng = engine.New(engine.Config{
		FlushInterval:   cfg.BatchInterval,
		HistoryLimit:    cfg.HistoryLimit,
		RecentFillLimit: cfg.RecentFillsLimit,
	}, logger, app.publish)
	return app
}

// Engine exposes the aggregation engine, mainly for tests.
func (a *App) Engine() *engine.Engine {
	return a.eng
}

func (a *App) publish(state domain.DashboardState) {
	if err := a.store.Append(state); err != nil {
		a.logger.Error("journal state", zap.Error(err))
	}
}

// Run connects to the venue and keeps the session alive, reconnecting
// with exponential backoff. Each attempt re-authenticates first since
// bearer tokens are short-lived. Blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.eng.Close()

	cfg := a.cfg
	if cfg.Simulate {
		go func() {
			if err := simulator.New(cfg.SimulatorAddr, 0, a.logger).Start(ctx); err != nil {
				a.logger.Error("simulator stopped", zap.Error(err))
			}
		}()
		cfg.WSURL = "ws://" + cfg.SimulatorAddr + "/ws"
		cfg.RestURL = "http://" + cfg.SimulatorAddr
		// give the simulator a beat to bind
		time.Sleep(100 * time.Millisecond)
	}

	wallet, err := a.wallet()
	if err != nil {
		return err
	}
	venue := clients.NewVenueClient(cfg.RestURL, wallet)
	bootstrap := session.NewBootstrap(venue, a.eng, a.logger)

	b := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		token, err := venue.Authenticate(ctx)
		if err != nil {
			wait := b.Duration()
			a.logger.Warn("authentication failed, retrying", zap.Error(err), zap.Duration("in", wait))
			if !sleep(ctx, wait) {
				return nil
			}
			continue
		}

		sess := session.New(session.Config{
			URL:       cfg.WSURL,
			Heartbeat: cfg.HeartbeatInterval,
			Engine:    a.eng,
			Bootstrap: bootstrap,
			Logger:    a.logger,
		})

		refreshCtx, stopRefresh := context.WithCancel(ctx)
		go a.refreshTokens(refreshCtx, venue, sess)

		started := time.Now()
		err = sess.Run(ctx, token)
		stopRefresh()

		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > resetAfter {
			b.Reset()
		}

		wait := b.Duration()
		if err != nil {
			a.logger.Warn("session ended, reconnecting", zap.Error(err), zap.Duration("in", wait))
		} else {
			a.logger.Info("connection closed, reconnecting", zap.Duration("in", wait))
		}
		if !sleep(ctx, wait) {
			return nil
		}
	}
}

// refreshTokens periodically obtains a fresh bearer and re-auths the
// live session in place, keeping subscriptions intact.
func (a *App) refreshTokens(ctx context.Context, venue *clients.VenueClient, sess *session.Session) {
	ticker := time.NewTicker(a.cfg.TokenRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			token, err := venue.Authenticate(ctx)
			if err != nil {
				a.logger.Warn("token refresh failed", zap.Error(err))
				continue
			}
			if err := sess.Refresh(token); err != nil {
				a.logger.Warn("session re-auth failed", zap.Error(err))
			}
		}
	}
}

func (a *App) wallet() (*clients.Wallet, error) {
	key := os.Getenv("PRIVATE_KEY")
	if key == "" && a.cfg.Simulate {
		key = devPrivateKey
	}
	if key == "" {
		return nil, errors.New("PRIVATE_KEY env is not set")
	}
	return clients.NewWallet(key)
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
