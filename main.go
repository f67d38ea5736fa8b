package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/devmorchid/secureboard/internal/cache"
	"github.com/devmorchid/secureboard/internal/config"
	"github.com/devmorchid/secureboard/internal/database"
	"github.com/devmorchid/secureboard/internal/handlers"
	"github.com/devmorchid/secureboard/internal/logging"
	"github.com/devmorchid/secureboard/internal/middleware"
	"github.com/devmorchid/secureboard/internal/monitoring"
	"github.com/devmorchid/secureboard/internal/services"
	"github.com/devmorchid/secureboard/internal/session"
	"github.com/devmorchid/secureboard/internal/worker"
)

// Application wires configuration, storage, services and the HTTP
// surface together.
type Application struct {
	Config    *config.Config
	DB        *database.Pool
	Redis     *redis.Client
	Sessions  *session.Store
	UserCache *cache.UserCache
	Queue     *worker.JobQueue
	Worker    *worker.Worker
	Router    *gin.Engine
	Server    *http.Server

	AuthService     services.AuthService
	RegisterService services.RegisterService
	UserService     services.UserService
	ProjectService  services.ProjectService
	TaskService     services.TaskService
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.Log.Level, cfg.Log.File)
	log := logging.WithComponent("main")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.WithError(err).Fatal("initialization failed")
	}

	app.setupRoutes()
	app.startServer()
}

func initializeApplication(cfg *config.Config) (*Application, error) {
	app := &Application{Config: cfg}
	log := logging.WithComponent("main")

	pool, err := database.NewPool(&database.PoolConfig{
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	app.DB = pool

	if err := database.RunMigrations(pool.DB, &database.MigrationConfig{
		MigrationsPath: "file://migrations",
		DBName:         cfg.Database.Name,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	app.Redis = redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	app.Sessions = session.NewStore(app.Redis, cfg.Session.Lifetime)
	app.UserCache = cache.NewUserCache(5 * time.Minute)
	app.Queue = worker.NewJobQueue(app.Redis)

	app.Worker = worker.NewWorker(worker.WorkerConfig{
		RedisClient:  app.Redis,
		Concurrency:  2,
		PollInterval: time.Second,
	})
	worker.RegisterDefaultHandlers(app.Worker, pool.DB, app.Queue)
	app.Worker.Start(0)

	// recurring maintenance: each run schedules its successor, so one
	// seed per job type is enough
	if err := app.Queue.Enqueue(worker.QueueDefault, worker.JobTypeTokenCleanup, nil); err != nil {
		log.WithError(err).Warn("could not schedule token cleanup")
	}
	if err := app.Queue.Enqueue(worker.QueueDefault, worker.JobTypeDueSoonScan, nil); err != nil {
		log.WithError(err).Warn("could not schedule due-soon scan")
	}

	app.AuthService = services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenLifetime)
	app.RegisterService = services.NewRegisterService()
	app.UserService = services.NewUserService()
	app.ProjectService = services.NewProjectService()
	app.TaskService = services.NewTaskService()

	monitoring.RegisterHealthCheck("database", func(ctx context.Context) error {
		return app.DB.Health()
	})
	monitoring.RegisterHealthCheck("redis", func(ctx context.Context) error {
		return app.Redis.Ping(ctx).Err()
	})

	log.Info("application initialized")
	return app, nil
}

func (app *Application) setupRoutes() {
	r := gin.New()

	r.Use(gin.Logger())
	r.Use(middleware.RecoveryWithLog())
	r.Use(middleware.SecureHeader())
	r.Use(monitoring.MetricsMiddleware())

	rateLimit := rate.Limit(float64(app.Config.RateLimit.RequestsPerMin) / 60.0)
	r.Use(middleware.RateLimiter(rateLimit, app.Config.RateLimit.BurstSize))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     app.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-XSRF-TOKEN"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", monitoring.HealthHandler())
	r.GET("/ready", monitoring.ReadinessHandler())
	r.GET("/live", monitoring.LivenessHandler())
	r.GET("/metrics", monitoring.MetricsHandler())

	auth := middleware.NewAuth(app.DB.DB, app.Sessions, app.UserCache,
		app.Config.Auth.JWTSecret, app.Config.Session.CookieName)
	loginGuard := middleware.NewLoginGuard(app.Redis, 5, time.Minute)

	authHandler := handlers.NewAuthHandler(app.DB.DB, app.Sessions,
		app.AuthService, app.RegisterService, app.Config.Session)
	userHandler := handlers.NewUserHandler(app.DB.DB, app.UserService, app.UserCache)
	projectHandler := handlers.NewProjectHandler(app.DB.DB, app.ProjectService)
	taskHandler := handlers.NewTaskHandler(app.DB.DB, app.TaskService, app.Queue)

	// Cookie-based web surface. Every request runs through session
	// loading; state-changing ones through CSRF verification.
	web := r.Group("", auth.LoadSession(), auth.VerifyCSRF())
	{
		web.GET("/sanctum/csrf-cookie", authHandler.CSRFCookie)
		web.POST("/login", loginGuard.Middleware(), authHandler.Login)
		web.POST("/register", authHandler.Register)
		web.POST("/logout", auth.RequireAuth(), authHandler.Logout)
		web.GET("/user", auth.RequireAuth(), authHandler.CurrentUser)
	}

	api := r.Group("/api", auth.LoadSession(), auth.VerifyCSRF())
	{
		api.POST("/token", loginGuard.Middleware(), authHandler.Token)

		protected := api.Group("", auth.RequireAuth())
		{
			protected.GET("/user", authHandler.CurrentUser)

			protected.GET("/users", userHandler.Index)
			protected.POST("/users", userHandler.Create)
			protected.GET("/users/:id", userHandler.Show)
			protected.PUT("/users/:id", userHandler.Update)
			protected.DELETE("/users/:id", userHandler.Delete)

			protected.GET("/projects", projectHandler.Index)
			protected.POST("/projects", projectHandler.Create)
			protected.GET("/projects/:id", projectHandler.Show)
			protected.PUT("/projects/:id", projectHandler.Update)
			protected.DELETE("/projects/:id", projectHandler.Delete)

			protected.GET("/tasks", taskHandler.Index)
			protected.POST("/tasks", taskHandler.Create)
			protected.GET("/tasks/:id", taskHandler.Show)
			protected.PUT("/tasks/:id", taskHandler.Update)
			protected.DELETE("/tasks/:id", taskHandler.Delete)
		}
	}

	app.Router = r
}

func (app *Application) startServer() {
	log := logging.WithComponent("main")
	addr := app.Config.GetServerAddr()

	app.Server = &http.Server{
		Addr:         addr,
		Handler:      app.Router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.Server.Shutdown(ctx); err != nil {
			log.WithError(err).Error("forced shutdown")
		}
		app.cleanup()
	}()

	log.WithField("addr", addr).Info("server listening")
	if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server failed")
	}
}

func (app *Application) cleanup() {
	log := logging.WithComponent("main")

	if app.Worker != nil {
		app.Worker.Stop()
	}
	if app.UserCache != nil {
		app.UserCache.Close()
	}
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			log.WithError(err).Warn("closing redis")
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			log.WithError(err).Warn("closing database")
		}
	}
	log.Info("cleanup complete")
}
