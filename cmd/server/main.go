package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatroom/backend/internal/auth"
	"chatroom/backend/internal/cache"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/database"
	"chatroom/backend/internal/gateway"
	"chatroom/backend/internal/handler"
	"chatroom/backend/internal/hub"
	"chatroom/backend/internal/logger"
	"chatroom/backend/internal/metrics"
	"chatroom/backend/internal/presence"
	"chatroom/backend/internal/store"
	"chatroom/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	// Swagger imports
	_ "chatroom/backend/docs" // registers the swagger spec served under /swagger

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const shutdownTimeout = 10 * time.Second

// @title           Chatroom API
// @version         1.0
// @description     Accounts and room history for the real-time chat service. Live chat runs over the /ws WebSocket.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	log := logger.L()

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config) error {
	log := logger.L()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	var messages store.MessageStore = store.NewGormStore(db)
	if cfg.CacheEnabled() {
		history, err := cache.NewRedisHistoryCache(cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		defer history.Close()
		messages = store.NewCachedStore(messages, history, cfg.HistoryCacheTTL)
		log.Info().Str("addr", cfg.RedisAddr).Msg("history cache enabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tokens := jwt.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	gate := auth.NewJWTGate(tokens)

	table := presence.New()
	broadcaster := hub.NewHub(table, hub.WithEvictionHook(func(string) {
		m.BroadcastEvictions.Inc()
	}))

	gw := gateway.New(gate, table, broadcaster, messages, m, gateway.Options{
		HistoryLimit:     cfg.HistoryLimit,
		MaxContentLength: cfg.MaxContentLength,
		StoreTimeout:     cfg.StoreTimeout,
		SendQueueSize:    cfg.WebSocket.SendQueueSize,
	})

	router := newRouter(cfg, routerDeps{
		users:   handler.NewUserHandler(db, tokens),
		rooms:   handler.NewRoomHandler(db, table),
		ws:      gateway.NewHandler(gw, cfg.WebSocket),
		gate:    gate,
		metrics: m,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("server is running")
		log.Info().Msgf("Swagger UI is available at http://localhost%s/swagger/index.html", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Hijacked WebSocket connections are not tracked by Shutdown.
		broadcaster.Shutdown()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type routerDeps struct {
	users   *handler.UserHandler
	rooms   *handler.RoomHandler
	ws      *gateway.Handler
	gate    auth.Authenticator
	metrics *metrics.Metrics
}

func newRouter(cfg *config.Config, d routerDeps) *gin.Engine {
	gin.SetMode(cfg.GinMode)

	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(*logger.L()))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	router.GET("/metrics", gin.WrapH(d.metrics.Handler()))

	// Chat WebSocket, authenticated during the handshake or by an auth event
	router.GET("/ws", d.ws.ServeWS)

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/register", d.users.RegisterUser)
			authRoutes.POST("/login", d.users.LoginUser)
		}

		// Room routes (protected)
		roomRoutes := apiV1.Group("/rooms")
		roomRoutes.Use(auth.Middleware(d.gate))
		{
			roomRoutes.GET("/:room/messages", d.rooms.GetRoomMessages)
			roomRoutes.GET("/:room/users", d.rooms.GetOnlineUsers)
		}
	}

	return router
}
