package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/libris-app/libris-backend/api/routes"
	"github.com/libris-app/libris-backend/internal/auth"
	"github.com/libris-app/libris-backend/internal/booklookup"
	"github.com/libris-app/libris-backend/internal/catalog"
	"github.com/libris-app/libris-backend/internal/members"
	"github.com/libris-app/libris-backend/internal/recommend"
	"github.com/libris-app/libris-backend/internal/rentals"
	"github.com/libris-app/libris-backend/internal/reservations"
	"github.com/libris-app/libris-backend/pkg/auth/session"
	"github.com/libris-app/libris-backend/pkg/config"
	"github.com/libris-app/libris-backend/pkg/db"
	"github.com/libris-app/libris-backend/pkg/logger"
	"github.com/libris-app/libris-backend/pkg/migrate"
	"github.com/libris-app/libris-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	bookRepo := catalog.NewRepository(dbClient.DB())
	userRepo := members.NewRepository(dbClient.DB())
	rentalRepo := rentals.NewRepository(dbClient.DB())
	reservationRepo := reservations.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(dbClient, bookRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	memberService, err := members.NewService(userRepo, cfg.Password)
	if err != nil {
		logg.Error(context.Background(), "failed to create member service", err)
		os.Exit(1)
	}

	rentalService, err := rentals.NewService(dbClient, rentalRepo, bookRepo, userRepo, cfg.Fines)
	if err != nil {
		logg.Error(context.Background(), "failed to create rental service", err)
		os.Exit(1)
	}

	reservationService, err := reservations.NewService(dbClient, reservationRepo, bookRepo, userRepo, rentalRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation service", err)
		os.Exit(1)
	}

	var lookupService booklookup.Service
	if cfg.GoogleBooks.APIKey != "" {
		lookupClient, err := booklookup.NewClient(cfg.GoogleBooks.APIKey, booklookup.WithLangRestrict(cfg.GoogleBooks.LangRestrict))
		if err != nil {
			logg.Error(context.Background(), "failed to create book lookup client", err)
			os.Exit(1)
		}
		lookupService = lookupClient
	} else {
		logg.Warn(context.Background(), "google books api key missing, lookup endpoints disabled")
	}

	var recommendService recommend.Service
	if cfg.Assistant.APIKey != "" {
		gemini, err := recommend.NewClient(cfg.Assistant.APIKey,
			recommend.WithModel(cfg.Assistant.Model),
			recommend.WithMaxOutputTokens(cfg.Assistant.MaxOutputTokens),
		)
		if err != nil {
			logg.Error(context.Background(), "failed to create assistant client", err)
			os.Exit(1)
		}
		recommendService, err = recommend.NewService(gemini, bookRepo)
		if err != nil {
			logg.Error(context.Background(), "failed to create assistant service", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "gemini api key missing, assistant endpoints disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:             cfg,
			Logger:             logg,
			DBPinger:           dbClient,
			RedisClient:        redisClient,
			SessionChecker:     sessionManager,
			AuthService:        authService,
			CatalogService:     catalogService,
			MemberService:      memberService,
			RentalService:      rentalService,
			ReservationService: reservationService,
			LookupService:      lookupService,
			RecommendService:   recommendService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
