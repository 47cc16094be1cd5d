package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/potluck-games/dicepot/internal/auth"
	"github.com/potluck-games/dicepot/internal/config"
	"github.com/potluck-games/dicepot/internal/handler"
	"github.com/potluck-games/dicepot/internal/logger"
	"github.com/potluck-games/dicepot/internal/middleware"
	"github.com/potluck-games/dicepot/internal/repository"
	"github.com/potluck-games/dicepot/internal/repository/memory"
	"github.com/potluck-games/dicepot/internal/repository/postgres"
	redisrepo "github.com/potluck-games/dicepot/internal/repository/redis"
	"github.com/potluck-games/dicepot/internal/service"
)

func main() {
	logger.Init()
	cfg := config.Load()
	log.Info().Str("store", cfg.Store).Msg("Config loaded")

	store, cleanup := openStore(cfg)
	defer cleanup()

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)
	var googleOAuth *auth.OAuthProvider
	if cfg.GoogleClientID != "" {
		googleOAuth = auth.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	}

	// WebSocket hub and room workers
	wsHub := handler.NewHub()
	roomSvc := service.NewRoomService(store, wsHub)
	defer roomSvc.Shutdown()

	// Handlers
	authHandler := handler.NewAuthHandler(googleOAuth, jwtMgr, store)
	gameHandler := handler.NewGameHandler(roomSvc)
	lbHandler := handler.NewLeaderboardHandler(store)
	wsHandler := handler.NewWSHandler(wsHub, jwtMgr, roomSvc)

	// Router
	mux := http.NewServeMux()
	authMw := auth.Middleware(jwtMgr)

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth (public)
	mux.HandleFunc("GET /auth/google/login", authHandler.GoogleLogin)
	mux.HandleFunc("GET /auth/google/callback", authHandler.GoogleCallback)
	mux.HandleFunc("POST /auth/refresh", authHandler.RefreshToken)
	mux.HandleFunc("GET /auth/guest", authHandler.GuestLogin)

	// Protected routes
	api := http.NewServeMux()
	api.HandleFunc("GET /auth/me", authHandler.GetMe)
	api.HandleFunc("PATCH /auth/profile", authHandler.UpdateProfile)
	api.HandleFunc("GET /auth/stats", authHandler.GetStats)
	api.HandleFunc("GET /auth/games", authHandler.GetActiveGames)
	api.HandleFunc("POST /games", gameHandler.CreateRoom)
	api.HandleFunc("GET /games/{code}", gameHandler.GetRoom)
	api.HandleFunc("POST /games/{code}/join", gameHandler.JoinRoom)
	api.HandleFunc("POST /games/{code}/ai", gameHandler.AddAI)
	api.HandleFunc("POST /games/{code}/start", gameHandler.StartGame)
	api.HandleFunc("POST /games/{code}/leave", gameHandler.LeaveRoom)
	api.HandleFunc("DELETE /games/{code}/players/{pid}", gameHandler.RemovePlayer)
	api.HandleFunc("POST /games/{code}/forfeit", gameHandler.Forfeit)
	api.HandleFunc("POST /games/{code}/strategy", gameHandler.SetStrategy)
	api.HandleFunc("GET /leaderboard/{period}", lbHandler.GetLeaderboard)

	mux.Handle("/", authMw(api))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /ws", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Logger, middleware.CORS(cfg.AllowedOrigins), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}

// openStore selects the persistence backend from the STORE env var.
func openStore(cfg *config.Config) (repository.Store, func()) {
	switch cfg.Store {
	case "postgres":
		db, err := postgres.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Database connection failed")
		}
		return postgres.NewStore(db), func() { db.Close() }
	case "redis":
		client, err := redisrepo.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		return redisrepo.NewStore(client), func() { client.Close() }
	default:
		return memory.New(), func() {}
	}
}
