package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"medchat/internal/config"
	"medchat/internal/middleware"
	"medchat/internal/store"
	"medchat/internal/utils"
	"medchat/internal/websocket"
)

// Server is the development chat API with its stores and hub.
type Server struct {
	cfg     *config.ServerConfig
	logger  *zap.Logger
	router  *gin.Engine
	hub     *websocket.Hub
	limiter *middleware.LimiterStore
	pool    *pgxpool.Pool
	stopHub context.CancelFunc
	httpSrv *http.Server
}

type options struct {
	passwordCost int
	requestLog   bool
}

type Option func(*options)

// WithPasswordCost sets the bcrypt cost used for seeded accounts.
func WithPasswordCost(cost int) Option {
	return func(o *options) { o.passwordCost = cost }
}

// WithRequestLog enables the gin access log.
func WithRequestLog() Option {
	return func(o *options) { o.requestLog = true }
}

// New connects the stores (PostgreSQL when cfg.DatabaseURL is set, memory
// otherwise), seeds the demo accounts and builds the router.
func New(ctx context.Context, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) (*Server, error) {
	o := options{passwordCost: utils.DefaultCost}
	for _, opt := range opts {
		opt(&o)
	}

	jwtManager, err := utils.NewJWTManager(cfg.JWTSecret, cfg.TokenMaxAge)
	if err != nil {
		return nil, fmt.Errorf("server.New: %w", err)
	}

	s := &Server{cfg: cfg, logger: logger}

	var (
		users       store.UserStore
		assignments store.AssignmentStore
		messages    store.MessageStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("server.New: creating connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("server.New: connecting to database: %w", err)
		}
		if err := store.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("server.New: %w", err)
		}
		s.pool = pool
		users = store.NewPostgresUserStore(pool)
		assignments = store.NewPostgresAssignmentStore(pool)
		messages = store.NewPostgresMessageStore(pool)
		logger.Info("using PostgreSQL store")
	} else {
		mem := store.NewMemoryStore()
		users, assignments, messages = mem, mem, mem
		logger.Info("using in-memory store; data is lost on exit")
	}

	hash := func(p string) (string, error) { return utils.HashPasswordWithCost(p, o.passwordCost) }
	if err := store.Seed(ctx, users, assignments, hash); err != nil {
		s.closePool()
		return nil, fmt.Errorf("server.New: %w", err)
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	s.hub = websocket.NewHub(logger)
	s.stopHub = stopHub
	go s.hub.Run(hubCtx)

	s.limiter = middleware.NewLimiterStore(cfg.LoginRatePerMinute, cfg.LoginRatePerMinute, time.Minute)
	s.router = NewRouter(Deps{
		Users:          users,
		Assignments:    assignments,
		Messages:       messages,
		JWT:            jwtManager,
		Hub:            s.hub,
		LoginLimiter:   s.limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
		RequestLog:     o.requestLog,
	})
	s.httpSrv = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on cfg.ServerPort until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener, the hub and the database pool.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	s.stopHub()
	s.limiter.Stop()
	s.closePool()
	return err
}

func (s *Server) closePool() {
	if s.pool != nil {
		s.pool.Close()
	}
}
