// internal/app/app.go
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ticketsync/internal/cache"
	"ticketsync/internal/config"
	"ticketsync/internal/db"
	"ticketsync/internal/domain/auth"
	"ticketsync/internal/pkg/httpx"
	"ticketsync/internal/realtime"
	accountsvc "ticketsync/internal/service/account"
	ticketsvc "ticketsync/internal/service/ticket"
	usersvc "ticketsync/internal/service/user"
	"ticketsync/internal/session"
)

type Options struct {
	Config    config.AppConfig
	Logger    *zap.Logger
	Navigator session.Navigator
	// Realtime ties the push channel to the session: it connects while
	// authenticated and disconnects on logout.
	Realtime bool
}

// App owns every long-lived client component.
type App struct {
	cfg    config.AppConfig
	logger *zap.Logger
	redis  *redis.Client

	HTTP          *httpx.Client
	Session       *session.Manager
	Tickets       *cache.Tickets
	Notifications *cache.Notifications
	Listeners     *realtime.Listeners
	Dispatcher    *realtime.Dispatcher
	Channel       *realtime.Channel

	TicketService  *ticketsvc.TicketService
	UserService    *usersvc.UserService
	AccountService *accountsvc.AccountService

	unsubscribe func()
}

func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// ----- HTTP -----
	client, err := httpx.New(cfg.APIURL, cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP client: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, HTTP: client}

	// ----- Session state store -----
	store, err := a.buildStore(ctx)
	if err != nil {
		return nil, err
	}

	nav := opts.Navigator
	if nav == nil {
		nav = session.NewPathNavigator("/", nil)
	}
	a.Session = session.NewManager(session.Options{
		HTTP:      client,
		Store:     store,
		Navigator: nav,
		Logger:    logger,
	})

	// ----- Shared cache -----
	a.Tickets = cache.NewTickets()
	a.Notifications = cache.NewNotifications()

	// ----- Realtime -----
	a.Listeners = realtime.NewListeners(logger)
	a.Dispatcher = realtime.NewDispatcher()
	a.Dispatcher.Register(realtime.NewTicketHandler(a.Tickets, a.Notifications, a.Listeners, logger))
	a.Channel = realtime.NewChannel(realtime.Options{
		URL:         cfg.WSURL,
		Jar:         client.Jar(),
		Token:       a.Session.Token,
		Dispatcher:  a.Dispatcher,
		Reconnect:   realtime.NewReconnectPolicy(cfg.Reconnect.Strategy, cfg.Reconnect.Delay, cfg.Reconnect.MaxDelay),
		MaxAttempts: cfg.Reconnect.MaxAttempts,
		Logger:      logger,
	})

	// ----- Services -----
	a.TicketService = ticketsvc.NewTicketService(a.Session, a.Tickets, logger)
	a.UserService = usersvc.NewUserService(a.Session, logger)
	a.AccountService = accountsvc.NewAccountService(a.Session, logger)

	a.unsubscribe = a.Session.OnChange(func(st auth.State) {
		if st.IsAuthenticated {
			if opts.Realtime {
				a.Channel.Connect()
			}
			return
		}
		a.Channel.Disconnect()
		a.Tickets.Reset()
		a.Notifications.ClearAll()
	})

	return a, nil
}

func (a *App) buildStore(ctx context.Context) (session.Store, error) {
	switch a.cfg.StateBackend {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		client, err := db.NewRedisClient(ctx, db.RedisConfig{
			Address:  a.cfg.RedisAddr,
			Password: a.cfg.RedisPass,
			DB:       a.cfg.RedisDB,
			PoolSize: 4,
		})
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.logger.Debug("session state in redis", zap.String("addr", a.cfg.RedisAddr), zap.String("key", a.cfg.StateKey))
		return session.NewRedisStore(client, a.cfg.StateKey, 0), nil
	default:
		return session.NewFileStore(a.cfg.StatePath), nil
	}
}

// Start restores persisted state and, when it claims a session, confirms
// it with the server. A session that cannot be confirmed ends logged out;
// that is not an error.
func (a *App) Start(ctx context.Context) (auth.State, error) {
	if _, err := a.Session.Restore(ctx); err != nil {
		return auth.State{}, err
	}
	if err := a.Session.CheckAuth(ctx); err != nil {
		a.logger.Info("stored session is no longer valid", zap.Error(err))
	}
	return a.Session.State(), nil
}

// Close stops the push channel and releases external connections. Session
// state stays persisted.
func (a *App) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.Channel.Close()
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
