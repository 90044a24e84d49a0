package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"hr-auth-server/config"
	_ "hr-auth-server/docs"
	"hr-auth-server/internal/audit"
	"hr-auth-server/internal/handler"
	"hr-auth-server/internal/migrate"
	"hr-auth-server/internal/oauth"
	"hr-auth-server/internal/ports"
	"hr-auth-server/internal/ratelimit"
	"hr-auth-server/internal/repository"
	"hr-auth-server/internal/security"
	"hr-auth-server/internal/service"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

func serve(ctx context.Context, configPath string) error {
	cfg, logger, err := loadConfigAndLogger(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := config.SetupDatabase(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("ошибка при закрытии БД", zap.Error(err))
		}
	}()

	if cfg.Database.MigrateOnStart {
		if err := migrate.Up(ctx, db.DB.DB); err != nil {
			return err
		}
	}

	var redisClient *config.RedisClient
	if cfg.Redis.Addr != "" {
		redisClient, err = config.SetupRedis(&cfg.Redis)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("ошибка при закрытии Redis", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("REDIS_ADDR не задан: in-memory rate limit, кэш профилей выключен")
	}

	recorder, closeAudit := setupAudit(ctx, cfg, logger)
	defer closeAudit()

	codec, err := security.NewTokenCodec(&cfg.JWT)
	if err != nil {
		return err
	}

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)

	var cacheRepo ports.CacheRepository
	var limiter ratelimit.Limiter
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient.Client, cfg.Cache.UserTTL)
	}
	if cfg.RateLimit.Enabled {
		if redisClient != nil {
			limiter = ratelimit.NewRedisLimiter(redisClient.Client, cfg.RateLimit.Limit, cfg.RateLimit.Window)
		} else {
			limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window)
		}
	}

	deps := service.AuthenticationDeps{
		Users:    userRepo,
		Tokens:   tokenRepo,
		Codec:    codec,
		Sessions: service.NewSessionIssuer(codec, tokenRepo),
		Google:   oauth.NewGoogleVerifier(&cfg.Google),
		Cache:    cacheRepo,
		Audit:    recorder,
		Log:      logger.Named("auth"),
	}
	if cfg.Google.ClientSecret != "" && cfg.Google.CallbackURL != "" {
		deps.Exchanger = oauth.NewGoogleCodeExchanger(&cfg.Google)
	} else {
		logger.Info("GOOGLE_CLIENT_SECRET или GOOGLE_CALLBACK_URL не заданы: redirect-вход через Google выключен")
	}

	authService := service.NewAuthenticationService(deps)
	userService := service.NewUserService(userRepo, cacheRepo, logger.Named("users"))

	authHandler := handler.NewAuthenticationHandler(authService, handler.CookieSettingsFromConfig(cfg), cfg.Server.FrontendURL, logger)
	userHandler := handler.NewUserHandler(userService, logger)
	healthHandler := handler.NewHealthHandler(db, logger)

	guards := handler.RouteGuards{
		Verifier:        codec,
		Limiter:         limiter,
		RateLimitPrefix: cfg.RateLimit.Prefix,
		AllowedOrigins:  cfg.Server.CORSOrigins,
		Log:             logger,
	}

	srv, router := config.SetupServer(cfg.Server.Addr)
	handler.SetupBaseMiddleware(router, cfg.Server.CORSOrigins, cfg.Server.TrustedProxyHops, logger)
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Route(cfg.Server.BasePath, func(r chi.Router) {
		r.Get("/healthz", healthHandler.Health)
		handler.SetupAuthRoutes(r, authHandler, guards)
		handler.SetupUserRoutes(r, userHandler, guards)
	})

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	var janitorDone sync.WaitGroup
	janitorDone.Add(1)
	go func() {
		defer janitorDone.Done()
		service.NewTokenJanitor(tokenRepo, cfg.Database.CleanupInterval, cfg.Database.RetainExpired, logger.Named("janitor")).Run(janitorCtx)
	}()
	defer func() {
		stopJanitor()
		janitorDone.Wait()
	}()

	return runServer(ctx, srv, cfg.Server.ShutdownTimeout, logger)
}

// setupAudit собирает цепочку: лог всегда, S3 и RabbitMQ через асинхронную очередь, если настроены.
// Недоступный приёмник не мешает старту
func setupAudit(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (audit.Recorder, func()) {
	recorders := audit.Multi{audit.NewLogRecorder(logger)}
	var sinks audit.Multi
	var closers []func() error

	if cfg.Audit.S3.Bucket != "" {
		s3Recorder, err := audit.NewS3Recorder(ctx, &cfg.Audit.S3)
		if err != nil {
			logger.Error("S3 аудит выключен", zap.Error(err))
		} else {
			sinks = append(sinks, s3Recorder)
		}
	}

	if cfg.Audit.AMQP.URL != "" {
		amqpRecorder, err := audit.NewAMQPRecorder(&cfg.Audit.AMQP)
		if err != nil {
			logger.Error("RabbitMQ аудит выключен", zap.Error(err))
		} else {
			sinks = append(sinks, amqpRecorder)
			closers = append(closers, amqpRecorder.Close)
		}
	}

	if len(sinks) > 0 {
		async := audit.NewAsyncRecorder(sinks, cfg.Audit.BufferSize, logger.Named("audit"))
		recorders = append(recorders, async)
		// очередь дренируется раньше, чем закрывается канал RabbitMQ
		closers = append([]func() error{async.Close}, closers...)
	}

	return recorders, func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Warn("ошибка при закрытии аудита", zap.Error(err))
			}
		}
	}
}

func runServer(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("сервер запущен", zap.String("addr", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ошибка работы сервера", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("получен сигнал остановки работы сервера")
	}

	shutDownCtx, shutDownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutDownCancel()

	if err := server.Shutdown(shutDownCtx); err != nil {
		logger.Error("ошибка при остановке сервера", zap.Error(err))
		return err
	}

	logger.Info("сервер успешно остановлен")
	return nil
}
