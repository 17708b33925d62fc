// Package main is the entry point for the NigerTransfert remittance service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deloabass/nigertransfert/internal/api"
	"github.com/deloabass/nigertransfert/internal/bot"
	"github.com/deloabass/nigertransfert/internal/config"
	"github.com/deloabass/nigertransfert/internal/database"
	"github.com/deloabass/nigertransfert/internal/events"
	"github.com/deloabass/nigertransfert/internal/ledger"
	"github.com/deloabass/nigertransfert/internal/limits"
	"github.com/deloabass/nigertransfert/internal/logger"
	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/deloabass/nigertransfert/internal/rates"
	"github.com/deloabass/nigertransfert/internal/repository"
	"github.com/deloabass/nigertransfert/internal/scheduler"
	"github.com/deloabass/nigertransfert/internal/submit"
	"github.com/deloabass/nigertransfert/internal/telemetry"
	"github.com/deloabass/nigertransfert/internal/wizard"
	"github.com/redis/go-redis/v9"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type userStore interface {
	bot.UserStore
	limits.TierStore
}

type archiveStore interface {
	ledger.ArchiveStore
	api.ArchiveReader
}

// stores groups the persistence layer, backed by Postgres or memory.
type stores struct {
	users         userStore
	beneficiaries bot.BeneficiaryStore
	instruments   bot.InstrumentStore
	archive       archiveStore
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("nigertransfert %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.SetLevel(cfg.LogLevel)
	if cfg.LogJSON {
		logger.SetJSON()
	}
	if cfg.LogHashSalt == "" {
		logger.Log.Warn().Msg("LOG_HASH_SALT not set, using the development salt for log hashing")
	} else if err := logger.InitHashSalt(cfg.LogHashSalt); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialise log hashing")
	}

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Exporter:    cfg.OTelExporter,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		ServiceName: "nigertransfert",
		Version:     version,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialise telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}()

	st, closeStores := openStores(ctx, cfg)
	defer closeStores()

	registry, closeRegistry := openRegistry(ctx, cfg)
	defer closeRegistry()

	publisher := openPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to close event publisher")
		}
	}()

	rateTable := rates.Default()
	policy := limits.DefaultPolicy()
	tiers := limits.NewRegistry(st.users)
	usage := ledger.New(cfg.LedgerLocation, cfg.LedgerWeekStart, ledger.WithArchive(st.archive))

	threshold, err := models.NewMoney(cfg.PendingThresholdEUR, models.SourceCurrency)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid pending threshold")
	}
	submitter, err := submit.New(submit.NewSimulatedBackend(threshold), registry, usage, submit.WithPublisher(publisher))
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create submitter")
	}

	sched := scheduler.New(usage, cfg.LedgerRolloverSchedule, cfg.LedgerLocation)
	if err := sched.Start(); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer func() { <-sched.Stop().Done() }()

	if cfg.HTTPAddr != "" {
		handler := api.NewHandler(rateTable, policy, tiers, usage, st.archive, submitter)
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.CORSAllowedOrigins, InternalAPIKey: cfg.InternalAPIKey}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP API listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Error().Err(err).Msg("HTTP API stopped")
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Log.Warn().Err(err).Msg("HTTP API shutdown")
			}
		}()
	}

	if cfg.BotEnabled() {
		w := wizard.New(wizard.Deps{
			Rates:         rateTable,
			Beneficiaries: st.beneficiaries,
			Instruments:   st.instruments,
			Tiers:         tiers,
			Usage:         usage,
			Policy:        policy,
			Submitter:     submitter,
		})
		telegramBot, err := bot.New(cfg, bot.Deps{
			Users:         st.users,
			Rates:         rateTable,
			Beneficiaries: st.beneficiaries,
			Instruments:   st.instruments,
			Tiers:         tiers,
			Usage:         usage,
			Policy:        policy,
			Wizard:        w,
		})
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to create bot")
		}
		telegramBot.Start(ctx)
	} else {
		<-ctx.Done()
	}

	logger.Log.Info().Msg("Shutting down...")
}

// openStores connects to Postgres when DATABASE_URL is set and falls back to
// memory stores otherwise.
func openStores(ctx context.Context, cfg *config.Config) (stores, func()) {
	if cfg.DatabaseURL == "" {
		logger.Log.Warn().Msg("DATABASE_URL not set, data is kept in memory only")
		return stores{
			users:         repository.NewMemoryUserStore(),
			beneficiaries: repository.NewMemoryBeneficiaryStore(),
			instruments:   repository.NewMemoryInstrumentStore(),
			archive:       repository.NewMemoryArchiveStore(),
		}, func() {}
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := database.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		logger.Log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	logger.Log.Info().Msg("Database initialized successfully")

	return stores{
		users:         repository.NewUserRepository(pool),
		beneficiaries: repository.NewBeneficiaryRepository(pool),
		instruments:   repository.NewInstrumentRepository(pool),
		archive:       repository.NewUsageArchiveRepository(pool),
	}, pool.Close
}

// openRegistry returns the Redis idempotency registry when REDIS_URL is set.
func openRegistry(ctx context.Context, cfg *config.Config) (submit.Registry, func()) {
	if cfg.RedisURL == "" {
		return submit.NewMemoryRegistry(cfg.IdempotencyTTL), func() {}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid REDIS_URL")
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	logger.Log.Info().Msg("Using Redis for submission idempotency")

	return submit.NewRedisRegistry(client, "nigertransfert:submission:", cfg.IdempotencyTTL), func() {
		if err := client.Close(); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
}

// openPublisher returns the AMQP publisher when RABBITMQ_URL is set.
func openPublisher(cfg *config.Config) events.Publisher {
	if cfg.RabbitMQURL == "" {
		return events.NoopPublisher{}
	}
	p, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.TransferEventQueue)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
	}
	logger.Log.Info().Str("queue", cfg.TransferEventQueue).Msg("Publishing transfer events")
	return p
}
