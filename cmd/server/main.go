package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/natural-twenty/api/internal/auth"
	"github.com/freeeve/natural-twenty/api/internal/config"
	"github.com/freeeve/natural-twenty/api/internal/handler"
	"github.com/freeeve/natural-twenty/api/internal/logger"
	"github.com/freeeve/natural-twenty/api/internal/middleware"
	"github.com/freeeve/natural-twenty/api/internal/repository/postgres"
	redisrepo "github.com/freeeve/natural-twenty/api/internal/repository/redis"
	"github.com/freeeve/natural-twenty/api/internal/service"
	"github.com/freeeve/natural-twenty/api/pkg/dice"
)

func main() {
	logger.Init()
	cfg := config.Load()
	log.Info().Str("databaseURL", cfg.DatabaseURL).Msg("Config loaded")

	// Database
	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	// Redis
	redisClient, err := redisrepo.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Repos
	userRepo := postgres.NewUserRepo(db)
	adventureRepo := postgres.NewAdventureRepo(db)
	characterRepo := postgres.NewCharacterRepo(db)
	enemyRepo := postgres.NewEnemyRepo(db)
	encounterRepo := postgres.NewEncounterRepo(db)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)
	googleOAuth := auth.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL)

	// WebSocket hub
	wsHub := handler.NewHub()

	// Services
	engine := dice.NewService()
	diceSvc := service.NewDiceService(engine, adventureRepo, redisClient, wsHub)
	combatSvc := service.NewCombatService(encounterRepo, adventureRepo, characterRepo, enemyRepo, redisClient, engine, wsHub)

	// Handlers
	authHandler := handler.NewAuthHandler(googleOAuth, jwtMgr, userRepo)
	userHandler := handler.NewUserHandler(userRepo)
	adventureHandler := handler.NewAdventureHandler(adventureRepo)
	characterHandler := handler.NewCharacterHandler(characterRepo, adventureRepo)
	enemyHandler := handler.NewEnemyHandler(enemyRepo)
	diceHandler := handler.NewDiceHandler(diceSvc)
	combatHandler := handler.NewCombatHandler(combatSvc)
	wsHandler := handler.NewWSHandler(wsHub, jwtMgr)

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
	mux.HandleFunc("GET /auth/dev", authHandler.DevLogin)

	// Protected API routes
	api := http.NewServeMux()
	api.HandleFunc("GET /users/me", userHandler.GetMe)
	api.HandleFunc("PATCH /users/me", userHandler.UpdateMe)
	api.HandleFunc("GET /users/{id}", userHandler.GetUser)
	api.HandleFunc("POST /dice/roll", diceHandler.Roll)
	api.HandleFunc("POST /dice/validate", diceHandler.Validate)
	api.HandleFunc("GET /dice/stats", diceHandler.Stats)
	api.HandleFunc("POST /adventures", adventureHandler.CreateAdventure)
	api.HandleFunc("GET /adventures", adventureHandler.ListAdventures)
	api.HandleFunc("GET /adventures/{id}", adventureHandler.GetAdventure)
	api.HandleFunc("PATCH /adventures/{id}", adventureHandler.UpdateAdventure)
	api.HandleFunc("DELETE /adventures/{id}", adventureHandler.DeleteAdventure)
	api.HandleFunc("POST /adventures/{id}/rolls", diceHandler.RollForAdventure)
	api.HandleFunc("GET /adventures/{id}/rolls", diceHandler.RecentRolls)
	api.HandleFunc("POST /adventures/{id}/characters", characterHandler.CreateCharacter)
	api.HandleFunc("GET /adventures/{id}/characters", characterHandler.ListCharacters)
	api.HandleFunc("GET /characters/{id}", characterHandler.GetCharacter)
	api.HandleFunc("DELETE /characters/{id}", characterHandler.DeleteCharacter)
	api.HandleFunc("GET /enemies", enemyHandler.ListEnemies)
	api.HandleFunc("POST /enemies", enemyHandler.CreateEnemy)
	api.HandleFunc("POST /adventures/{id}/combat", combatHandler.InitiateCombat)
	api.HandleFunc("GET /combat/{id}", combatHandler.GetCombatStatus)
	api.HandleFunc("POST /combat/{id}/attack", combatHandler.Attack)
	api.HandleFunc("POST /combat/{id}/ai-turn", combatHandler.AITurn)
	api.HandleFunc("POST /combat/{id}/flee", combatHandler.Flee)
	api.HandleFunc("POST /combat/{id}/defend", combatHandler.Defend)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", authMw(api)))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Logger, middleware.CORS("*"), middleware.JSON)

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
