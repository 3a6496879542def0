package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maturity_backend/internal/config"
	"maturity_backend/internal/controller"
	"maturity_backend/internal/directus"
	"maturity_backend/internal/repository"
	"maturity_backend/internal/service"
	"maturity_backend/pkg/configwatcher"
	"maturity_backend/pkg/database"
	"maturity_backend/pkg/logger"
	"maturity_backend/pkg/monitoring"
	"maturity_backend/pkg/security"
	"maturity_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	Directus *directus.Client

	services       *services
	origins        *security.OriginList
	tracerProvider *sdktrace.TracerProvider
}

type services struct {
	levels      *service.LevelService
	results     *service.ResultsService
	userResults *service.UserResultsService
	content     *service.ContentService
	identity    *service.IdentityService
	diagnostics *service.DiagnosticService
	hub         *service.ContentHub
	notifier    *service.ChangeNotifier
}

type controllers struct {
	results     *controller.ResultsController
	content     *controller.ContentController
	diagnostics *controller.DiagnosticController
	user        *controller.UserController
	health      *controller.HealthController
}

func (a *App) initServices(cfg *config.Config) *services {
	cms := a.Directus

	var companyCache service.CompanyCache
	hashes := service.NewMemoryHashStore()
	if a.Redis != nil {
		companyCache = service.NewRedisCompanyCache(a.Redis)
		hashes = service.NewRedisHashStore(a.Redis)
	}

	s := &services{}
	s.levels = service.NewLevelService(cms)
	s.results = service.NewResultsService(s.levels)
	s.userResults = service.NewUserResultsService(cms, service.NewRandomPicker(cfg.Server.RandomSeed))
	s.content = service.NewContentService(cms, cms, cfg.Content.Sections)
	s.identity = service.NewIdentityService(
		service.NewKeycloakClient(cfg.Keycloak),
		service.NewCPEClient(cfg.CPE),
		companyCache,
		cfg.CPE.CacheTTL,
	)
	s.diagnostics = service.NewDiagnosticService(repository.NewDiagnosticRepository(a.DB), s.results)
	s.hub = service.NewContentHub(a.Redis)
	if cfg.Notifier.Enabled {
		s.notifier = service.NewChangeNotifier(cms, s.hub, hashes, cfg.Notifier.Collections, cfg.Notifier.Interval)
	}
	return s
}

func (a *App) initControllers(s *services) *controllers {
	components := map[string]controller.Pinger{
		"database": controller.PingFunc(func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
		"directus": a.Directus,
		"redis":    nil,
	}
	if a.Redis != nil {
		components["redis"] = controller.PingFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		})
	}

	return &controllers{
		results:     controller.NewResultsController(s.results, s.userResults, s.content),
		content:     controller.NewContentController(s.content, s.hub),
		diagnostics: controller.NewDiagnosticController(s.diagnostics),
		user:        controller.NewUserController(),
		health:      controller.NewHealthController(components),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(a.origins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// onConfigReload 只有 CORS 白名单与日志级别支持热更新
func (a *App) onConfigReload(cfg *config.Config) {
	a.origins.Set(cfg.CORS.AllowedOrigins)
	logger.SetMode(cfg.Server.Mode)
	logger.Log.Info("Runtime settings updated",
		zap.Strings("allowedOrigins", cfg.CORS.AllowedOrigins),
		zap.String("mode", cfg.Server.Mode))
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	if cfg.Database.AutoMigrate || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	app := &App{
		Config:   cfg,
		DB:       db,
		Directus: directus.NewClient(cfg.Directus),
		origins:  security.NewOriginList(cfg.CORS.AllowedOrigins),
	}
	if cfg.MigrateOnly {
		return app
	}

	// Redis 不可用时退化为单实例：无企业缓存，通知摘要只保存在内存
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, continuing without it", zap.Error(err))
	} else {
		app.Redis = rdb
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracerProvider = tp
	}

	monitoring.Init()

	app.services = app.initServices(cfg)
	controllers := app.initControllers(app.services)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers)

	return app
}

func (a *App) startBackgroundTasks(ctx context.Context) {
	go a.services.hub.Run(ctx)

	if a.services.notifier != nil {
		go a.services.notifier.Run(ctx)
	}

	if a.Config.ConfigPath != "" {
		go func() {
			if err := configwatcher.WatchConfig(ctx, a.Config.ConfigPath, a.onConfigReload); err != nil {
				logger.Log.Error("Config watcher stopped", zap.Error(err))
			}
		}()
	}
}

func (a *App) Run() {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a.startBackgroundTasks(ctx)

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// 停止通知轮询并关闭 WebSocket 连接
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Log.Info("Server exiting")
}
