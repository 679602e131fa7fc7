package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ticketsync/internal/config"
	"ticketsync/internal/db"
	"ticketsync/internal/domain/user"
	"ticketsync/internal/middleware"
	xerrors "ticketsync/internal/pkg/errors"
	"ticketsync/internal/pkg/jwt"
	"ticketsync/internal/websocket"
)

type Server struct {
	cfg     config.DevConfig
	engine  *gin.Engine
	logger  *zap.Logger
	store   Repository
	pool    *pgxpool.Pool
	hub     *websocket.Hub
	tokens  *jwt.Manager
	httpSrv *http.Server
	redis   *redis.Client
	stopHub context.CancelFunc
}

// NewServer wires the repository, token manager, push hub and routes, and
// seeds the admin account named in cfg. The repository is Postgres when
// cfg.DatabaseURL is set and process memory otherwise.
func NewServer(cfg config.DevConfig, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("devserver")

	// ----- JWT Manager -----
	tokens, err := jwt.LoadAndBuild(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("failed to load JWT manager: %w", err)
	}

	ctx := context.Background()
	s := &Server{cfg: cfg, logger: logger}

	// ----- Repository -----
	var store Repository
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, 10)
		if err != nil {
			return nil, err
		}
		s.pool = pool
		pg := NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			_ = s.close()
			return nil, err
		}
		store = pg
		logger.Info("using postgres repository")
	} else {
		store = NewMemoryStore()
	}

	// ----- Login throttling -----
	var limiter *RateLimiter
	if cfg.RedisAddr != "" {
		redisClient, err := db.NewRedisClient(ctx, db.RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPass,
			PoolSize: 10,
		})
		if err != nil {
			_ = s.close()
			return nil, err
		}
		s.redis = redisClient
		limiter = NewRateLimiter(redisClient, cfg.LoginMaxAttempts, cfg.LoginWindow)
		logger.Info("login rate limiting enabled",
			zap.Int("max_attempts", cfg.LoginMaxAttempts),
			zap.Duration("window", cfg.LoginWindow),
		)
	}

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(tokens.Verifier, logger)
	hubCtx, stopHub := context.WithCancel(ctx)
	go hub.Run(hubCtx)

	// ----- Handlers -----
	handlers := &Handlers{
		Auth:           NewAuthHandler(store, tokens, hub, limiter, cfg.JWT.RefreshTTL, logger),
		Ticket:         NewTicketHandler(store, hub, logger),
		User:           NewUserHandler(store, hub, logger),
		WebSocket:      NewWebSocketHandler(hub, cfg.AllowedOrigin, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(tokens.Verifier),
	}

	engine := gin.New()
	engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(cfg.AllowedOrigin),
	)
	SetupRouter(engine, handlers)

	s.engine = engine
	s.store = store
	s.hub = hub
	s.tokens = tokens
	s.stopHub = stopHub
	s.httpSrv = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.initializeAdmin(ctx); err != nil {
		_ = s.close()
		return nil, err
	}
	return s, nil
}

// initializeAdmin creates the configured admin account. An account left by
// an earlier run against the same database is kept as is.
func (s *Server) initializeAdmin(ctx context.Context) error {
	if s.cfg.AdminEmail == "" {
		return nil
	}
	if len(s.cfg.AdminPassword) < 8 {
		return fmt.Errorf("admin password must be at least 8 characters")
	}
	_, err := s.store.CreateUser(ctx, s.cfg.AdminName, s.cfg.AdminEmail, s.cfg.AdminPassword, user.RoleAdmin)
	if errors.Is(err, xerrors.ErrConflict) {
		s.logger.Info("admin account exists", zap.String("email", s.cfg.AdminEmail))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	s.logger.Info("admin account ready", zap.String("email", s.cfg.AdminEmail))
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Store() Repository {
	return s.store
}

func (s *Server) Hub() *websocket.Hub {
	return s.hub
}

// Start serves on cfg.HTTPAddr until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("devserver listening", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes every push connection.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	if cerr := s.close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Server) close() error {
	if s.stopHub != nil {
		s.stopHub()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
