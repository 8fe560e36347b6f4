package daemon

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/lawdesk/internal/access"
	"github.com/matheus3301/lawdesk/internal/api"
	"github.com/matheus3301/lawdesk/internal/bus"
	"github.com/matheus3301/lawdesk/internal/config"
	"github.com/matheus3301/lawdesk/internal/identity"
	"github.com/matheus3301/lawdesk/internal/ingest"
	"github.com/matheus3301/lawdesk/internal/lock"
	"github.com/matheus3301/lawdesk/internal/logging"
	"github.com/matheus3301/lawdesk/internal/metrics"
	"github.com/matheus3301/lawdesk/internal/repo"
	"github.com/matheus3301/lawdesk/internal/snapshot"
	"github.com/matheus3301/lawdesk/internal/status"
	"github.com/matheus3301/lawdesk/internal/store"
	"github.com/matheus3301/lawdesk/internal/wa"
	"github.com/matheus3301/lawdesk/internal/workspace"
)

// Params holds the resolved workspace configuration passed to the fx module.
type Params struct {
	Workspace string

	// Optional overrides for testing; zero values use the workspace layout.
	Dir        string
	SocketPath string
	Config     *config.Config
	Logger     *zap.Logger
}

func (p Params) dir() string {
	if p.Dir != "" {
		return p.Dir
	}
	return workspace.Dir(p.Workspace)
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			metrics.New,
			provideBus,
			provideHealth,
			provideLock,
			provideStore,
			provideGuard,
			identity.New,
			snapshot.New[store.Conversation],
			repo.NewConversationRepo,
			provideMessageRepo,
			provideSearch,
			repo.NewCaseRepo,
			provideFilter,
			ingest.NewReconciler,
			provideEngine,
			provideConnector,
			provideService,
			NewServer,
			NewHTTPServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, p.Config.Validate()
	}
	return config.LoadOrDefault(workspace.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	if p.Logger != nil {
		return p.Logger, nil
	}
	return logging.New(cfg.Log.Level, workspace.LogPath(p.Workspace), p.Workspace)
}

func provideBus(m *metrics.Metrics) *bus.Bus {
	return bus.New(bus.WithDropHook(func(kind string) {
		m.BusDropped.WithLabelValues(kind).Inc()
	}))
}

func provideHealth(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring workspace lock", zap.String("workspace", p.Workspace))
	l, err := lock.Acquire(p.dir())
	if err != nil {
		return nil, err
	}
	logger.Info("workspace lock acquired")
	return l, nil
}

// provideStore opens and migrates the backing store. It returns nil when no
// store path is configured.
func provideStore(p Params, cfg *config.Config, logger *zap.Logger) (*store.DB, error) {
	dbPath := cfg.StorePath(p.dir())
	if dbPath == "" {
		logger.Warn("no store path configured, running without a backing store")
		return nil, nil
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideGuard(db *store.DB, cfg *config.Config, health *status.Machine, m *metrics.Metrics, logger *zap.Logger) *repo.Guard {
	var backend repo.Backend
	if db != nil {
		backend = db
	}
	return repo.NewGuard(backend, policyFrom(cfg), health, m, logger)
}

func policyFrom(cfg *config.Config) repo.Policy {
	s := cfg.Store
	return repo.Policy{
		Timeout:            s.Timeout.Duration,
		Attempts:           s.Retry.Attempts,
		BaseDelay:          s.Retry.BaseDelay.Duration,
		Multiplier:         s.Retry.Multiplier,
		MaxDelay:           s.Retry.MaxDelay.Duration,
		BreakerMaxFailures: s.Breaker.MaxFailures,
		BreakerOpenTimeout: s.Breaker.OpenTimeout.Duration,
	}
}

func provideMessageRepo(g *repo.Guard, convs *repo.ConversationRepo, logger *zap.Logger) *repo.MessageRepo {
	return repo.NewMessageRepo(g, convs, logger)
}

func provideSearch(g *repo.Guard, logger *zap.Logger) *repo.Search {
	return repo.NewSearch(g, logger)
}

func provideFilter(convs *repo.ConversationRepo, cases *repo.CaseRepo, logger *zap.Logger) *access.Filter {
	return access.NewFilter(convs, cases, logger)
}

func provideEngine(convs *repo.ConversationRepo, msgs *repo.MessageRepo, recon *ingest.Reconciler, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *ingest.Engine {
	return ingest.NewEngine(convs, msgs, recon, b, m, logger)
}

// connector bundles the WhatsApp adapter with its event handler. Both are
// nil when the connector is disabled.
type connector struct {
	adapter *wa.Adapter
	handler *wa.EventHandler
}

func (c *connector) Connected() bool     { return c.handler.Connected() }
func (c *connector) PhoneNumber() string { return c.adapter.PhoneNumber() }

func provideConnector(p Params, cfg *config.Config, b *bus.Bus, logger *zap.Logger) (*connector, error) {
	if !cfg.WhatsApp.Enabled {
		return &connector{}, nil
	}
	adapter, err := wa.NewAdapter(context.Background(), workspace.ConnectorDBPath(p.Workspace), logger.Named("wa"))
	if err != nil {
		return nil, err
	}
	return &connector{
		adapter: adapter,
		handler: wa.NewEventHandler(b, adapter, logger.Named("wa")),
	}, nil
}

type serviceParams struct {
	fx.In

	Params Params
	Filter *access.Filter
	Convs  *repo.ConversationRepo
	Msgs   *repo.MessageRepo
	Search *repo.Search
	Cases  *repo.CaseRepo
	Engine *ingest.Engine
	Guard  *repo.Guard
	Health *status.Machine
	Bus    *bus.Bus
	Conn   *connector
	Logger *zap.Logger
}

func provideService(sp serviceParams) *api.ConversationService {
	d := api.Deps{
		Workspace: sp.Params.Workspace,
		Filter:    sp.Filter,
		Convs:     sp.Convs,
		Msgs:      sp.Msgs,
		Search:    sp.Search,
		Cases:     sp.Cases,
		Engine:    sp.Engine,
		Guard:     sp.Guard,
		Health:    sp.Health,
		Bus:       sp.Bus,
		Logger:    sp.Logger.Named("api"),
	}
	if sp.Conn.adapter != nil {
		d.Connector = sp.Conn
	}
	return api.NewConversationService(d)
}

type lifecycleParams struct {
	fx.In

	LC      fx.Lifecycle
	Server  *Server
	HTTP    *HTTPServer
	Lock    *lock.Lock
	DB      *store.DB
	Guard   *repo.Guard
	Health  *status.Machine
	Recon   *ingest.Reconciler
	Engine  *ingest.Engine
	Conn    *connector
	Config  *config.Config
	Metrics *metrics.Metrics
	Convs   *repo.ConversationRepo
	Logger  *zap.Logger
}

func registerLifecycle(lp lifecycleParams) {
	logger := lp.Logger
	connectCtx, cancelConnect := context.WithCancel(context.Background())
	lp.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			settleHealth(ctx, lp)

			// Start ingestion (subscribes to inbound.* bus events).
			lp.Engine.Start(context.Background())

			go func() {
				if err := lp.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			if lp.HTTP != nil {
				go func() {
					if err := lp.HTTP.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("HTTP server error", zap.Error(err))
					}
				}()
			}

			if a := lp.Conn.adapter; a != nil {
				a.RegisterEventHandler(lp.Conn.handler.Handle)
				if a.IsLoggedIn() {
					wcfg := lp.Config.WhatsApp
					go func() {
						if err := a.ConnectWithRetry(connectCtx, wcfg.ReconnectAttempts, wcfg.ReconnectDelay.Duration); err != nil {
							logger.Error("connector auto-connect failed", zap.Error(err))
						}
					}()
				} else {
					logger.Warn("connector enabled but no device is paired")
				}
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancelConnect()
			if lp.Conn.adapter != nil {
				lp.Conn.adapter.Disconnect()
			}
			lp.Engine.Stop()
			lp.Server.Stop(ctx)
			if lp.HTTP != nil {
				if err := lp.HTTP.Stop(ctx); err != nil {
					logger.Warn("error stopping HTTP server", zap.Error(err))
				}
			}
			if lp.DB != nil {
				if err := lp.DB.Close(); err != nil {
					logger.Warn("error closing store", zap.Error(err))
				}
			}
			if err := lp.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

// settleHealth moves store health out of BOOTING. A configured store is
// probed by warming the identity cache from it.
func settleHealth(ctx context.Context, lp lifecycleParams) {
	if !lp.Guard.Configured() {
		_ = lp.Health.Transition(status.NotConfigured)
		return
	}
	n, err := lp.Recon.WarmIdentityCache(ctx)
	if err != nil {
		lp.Logger.Warn("identity cache warm-up failed", zap.Error(err))
		_ = lp.Health.Ensure(status.Degraded)
		return
	}
	lp.Metrics.IdentityCacheSize.Set(float64(lp.Convs.Cache().Len()))
	lp.Logger.Info("identity cache warmed", zap.Int("bindings", n))
	_ = lp.Health.Ensure(status.Online)
}
