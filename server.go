package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gutsdata/explorer_backend/appctx"
	"github.com/gutsdata/explorer_backend/catalog"
	"github.com/gutsdata/explorer_backend/config"
	"github.com/gutsdata/explorer_backend/datarequest"
	"github.com/gutsdata/explorer_backend/ingest"
	"github.com/gutsdata/explorer_backend/members"
	"github.com/gutsdata/explorer_backend/middlewares"
	"github.com/gutsdata/explorer_backend/neptune"
	"github.com/gutsdata/explorer_backend/registry"
	"github.com/gutsdata/explorer_backend/store"
	"github.com/gutsdata/explorer_backend/utils"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

type app struct {
	logger  *logrus.Logger
	submit  *datarequest.Service
	reader  *catalog.Reader
	runner  *ingest.Runner
	users   members.Directory
	limiter *middlewares.RateLimiter
}

func profileHandler(c *gin.Context) {
	ctx := c.Request.Context()
	if !appctx.IsAuthenticated(ctx) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": utils.ErrorNotAuthenticated.Error()})
		return
	}
	sub, _ := utils.GetSubjectFromContext(ctx)
	name, _ := utils.GetDisplayNameFromContext(ctx)
	email, _ := utils.GetEmailFromContext(ctx)
	c.JSON(http.StatusOK, gin.H{"sub": sub, "name": name, "email": email})
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	// production requires an explicit allowlist; an empty one denies all
	if config.IsProduction() {
		cfg.AllowOrigins = config.SplitAndTrim(config.EnvString("CORS_ALLOWED_ORIGINS", config.EnvString("FRONTEND_URL", "")))
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationHeader)
	cfg.AllowCredentials = true
	return cfg
}

func newRouter(a *app) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(cors.New(corsConfig()))
	if a.limiter != nil {
		r.Use(a.limiter.Middleware())
	}
	r.Use(middlewares.RequestLogger(a.logger))
	r.Use(gin.Recovery())
	r.Use(middlewares.AuthMiddleware())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api := r.Group("/api")
	api.GET("/profile", profileHandler)
	api.POST("/submit", datarequest.SubmitHandler(a.submit))
	api.GET("/export.xlsx", catalog.ExportHandler(a.reader))
	members.Register(api, a.users)
	api.GET("/:metadata", catalog.MetadataHandler(a.reader))

	r.POST("/pubsub/update-metadata", ingest.PubSubPushHandler(a.runner))
	r.NoRoute(customNotFoundHandler)
	return r
}

func main() {
	port := config.EnvString("PORT", defaultPort)
	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	docs, err := store.Open(sigCtx)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "store"}).Fatal("open document store: " + err.Error())
	}
	repo := store.NewRepository(docs)

	client, err := neptune.NewClientFromEnv()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "neptune"}).Fatal("exchange service client: " + err.Error())
	}

	aliases := registry.NewAliasTable(config.EnvMap("PROVIDER_ALIASES"))
	var notifier datarequest.Notifier
	if n := datarequest.NewPubSubNotifierFromEnv(); n != nil {
		notifier = n
	}

	a := &app{
		logger: logger,
		submit: datarequest.NewService(datarequest.NewBuilder(repo, aliases), client, notifier, logger),
		reader: catalog.NewReader(repo),
		users:  client,
	}

	opts := ingest.OptionsFromEnv()
	opts.Logger = logger
	var locker ingest.Locker
	var cache *catalog.RedisCache
	if config.EnvString("REDIS_ADDRESS", "") != "" {
		locker = ingest.NewRedisLocker(config.GetRedisLock)
		cache = catalog.NewRedisCache()
		a.reader.WithCache(cache)
		if config.EnvBool("RATE_LIMIT_ENABLED", false) {
			window := time.Duration(config.EnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second
			a.limiter = middlewares.NewRateLimiter(config.GetRedisDB, int64(config.EnvInt("RATE_LIMIT_MAX_REQUESTS", 600)), window)
		}
		// redis is optional at startup; the lock and limiter pick it up once connected
		go func() {
			if err := config.ConnectRedisWithRetry(sigCtx, 0); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithFields(logrus.Fields{"field": "redis"}).Error("redis unavailable: " + err.Error())
			}
		}()
	} else {
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("REDIS_ADDRESS not set; ingestion runs unlocked")
	}
	a.runner = ingest.NewRunner(ingest.New(client, repo, opts), locker)
	if cache != nil {
		a.runner.OnPersisted(func(ctx context.Context, datasets []string) { cache.Invalidate(ctx, datasets...) })
	}

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(a),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{"port": port}).Info("explorer backend listening")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
	if closer, ok := docs.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
