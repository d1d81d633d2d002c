package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	echoapi "github.com/presh-ai/training-portal/api/echo"
	"github.com/presh-ai/training-portal/cache"
	cacheredis "github.com/presh-ai/training-portal/cache/redis"
	"github.com/presh-ai/training-portal/config"
	"github.com/presh-ai/training-portal/domain"
	"github.com/presh-ai/training-portal/internal/federation"
	"github.com/presh-ai/training-portal/internal/server"
	"github.com/presh-ai/training-portal/log"
	"github.com/presh-ai/training-portal/mongodb"
	"github.com/presh-ai/training-portal/services"
	"github.com/presh-ai/training-portal/tracing"
)

var (
	appLogger      log.Logger
	httpServer     *http.Server
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize Logger
	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
		fallbackLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		fallbackLogger.Warn().
			Str("configured_log_level", cfg.LogLevel).
			Str("fallback_log_level", logLevel.String()).
			Err(parseErr).
			Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)
	appLogger.Info(context.Background(), "Starting training-portal server...")
	appLogger.Info(context.Background(), "Configuration loaded", map[string]interface{}{
		"http_port":       cfg.HTTPPort,
		"mongo_db_name":   cfg.MongoDBName,
		"auth_provider":   cfg.Provider(),
		"allowed_domain":  cfg.Domain(),
		"frontend_origin": cfg.FrontendOrigin(),
		"redis":           cfg.RedisAddr != "",
	})

	// Initialize OpenTelemetry TracerProvider
	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(context.Background(), "Failed to initialize TracerProvider", err)
	}
	tracerProvider = tp

	// --- Initialize Dependencies ---
	ctx := context.Background()
	if initErr := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); initErr != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", initErr)
	}
	db := mongodb.GetDB()

	userRepo, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize UserRepository", err)
	}

	// Session store: Redis when configured, in-memory otherwise.
	sessionTTL := time.Duration(cfg.SessionTTLHours) * time.Hour
	var sessionStore domain.SessionStore
	if cfg.RedisAddr != "" {
		redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
			appLogger.Fatal(ctx, "Failed to connect to Redis", pingErr)
		}
		sessionStore = cacheredis.NewSessionStore(redisClient, "portal", sessionTTL)
		appLogger.Info(ctx, "Using Redis session store")
	} else {
		sessionStore = cache.NewMemorySessionStore(sessionTTL)
		appLogger.Info(ctx, "Using in-memory session store")
	}

	// Resolve the identity provider once for the process lifetime.
	provider := federation.ResolveProvider(cfg)
	if provider == nil {
		appLogger.Warn(ctx, "No identity provider configured; logins will fail until credentials are set")
	} else {
		appLogger.Info(ctx, "Identity provider resolved", map[string]interface{}{
			"provider": provider.Name(),
		})
	}
	federationSvc := federation.NewService(provider)

	stateGuard := services.NewStateGuard()
	authorizer := services.NewDomainAuthorizer(cfg.Domain())
	provisioner := services.NewProvisioningService(userRepo)
	sessionSvc := services.NewSessionService(sessionStore, sessionTTL)

	authAPI := echoapi.NewAuthAPI(cfg, federationSvc, stateGuard, authorizer, provisioner, sessionSvc, userRepo, mongodb.Ping)

	// --- End Dependency Initialization ---

	httpServer = server.NewHTTPServer(cfg, appLogger, authAPI)
	go func() {
		appLogger.Info(context.Background(), fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(context.Background(), "Failed to start HTTP server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(context.Background(), fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "HTTP server shutdown error", err)
		}
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err)
		}
	}

	mongodb.CloseMongoDB(shutdownCtx)

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}
