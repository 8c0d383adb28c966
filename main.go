package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"vetclinic/admin"
	"vetclinic/config"
	"vetclinic/events"
	"vetclinic/handlers"
	"vetclinic/middleware"
	"vetclinic/models"
	"vetclinic/monitoring"
	"vetclinic/search"
	"vetclinic/services"
	"vetclinic/utils"
)

var logger = log.New(os.Stdout, "VETCLINIC: ", log.LstdFlags|log.Lshortfile)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "vetclinic",
		Short:        "Veterinary clinic site and admin",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newConsumeCmd(),
		newSeedCmd(),
		newReindexCmd(),
		newRemindCmd(),
	)
	return cmd
}

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(migrate)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply database migrations on start")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.SentryDSN != "" {
		flush, err := utils.InitSentry(cfg.SentryDSN, cfg.AppEnv, cfg.AppVersion)
		if err != nil {
			logger.Printf("Sentry disabled: %v", err)
		} else {
			defer flush()
		}
	}
	monitoring.Init()

	publisher := a.publisher()
	media := utils.NewMediaStore(cfg.MediaRoot, cfg.MediaURL)

	var searcher handlers.ServiceSearcher
	if index := a.serviceIndex(ctx); index != nil {
		searcher = index
	}

	router := gin.New()
	router.Use(
		gin.Logger(),
		gin.Recovery(),
		middleware.SentryMiddleware(),
		middleware.ErrorHandler(),
		middleware.PrometheusMetrics(),
		middleware.PerformanceLogger(cfg.Debug),
		middleware.CORS(cfg.CORSOrigins),
	)

	site := handlers.NewSiteHandler(a.repo, a.cache, searcher, handlers.SiteOptions{
		Location:          cfg.Location,
		IncludeUnapproved: cfg.RatingIncludeUnapproved,
	})
	doctors := handlers.NewDoctorHandler(a.repo, media, a.cache, publisher)
	handlers.RegisterRoutes(router, site, doctors)

	adminSite := admin.NewSite(a.repo.DB(), admin.Options{
		Location: cfg.Location,
		Cache:    a.cache,
		Events:   publisher,
	})
	if err := admin.RegisterClinic(adminSite, media); err != nil {
		return err
	}
	if err := admin.RegisterMuseum(adminSite); err != nil {
		return err
	}
	adminSite.Mount(router)

	router.GET("/metrics", gin.WrapH(monitoring.Handler()))
	router.GET("/api/v1/health", a.health)
	if cfg.Debug {
		router.Static(cfg.MediaURL, cfg.MediaRoot)
	}

	if cfg.TwilioEnabled() {
		reminders := services.NewReminderService(a.repo, a.sender(), cfg.Location)
		if err := reminders.StartScheduler(cfg.ReminderSchedule); err != nil {
			return err
		}
		defer reminders.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Server is running on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *app) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	details := gin.H{"database": "available", "redis": "disabled"}

	sqlDB, err := a.repo.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
		details["database"] = "unavailable"
	}

	// Простая проверка Redis
	if a.redis != nil {
		details["redis"] = "available"
		if err := a.redis.SetToCache(ctx, "healthcheck", "ping", 10*time.Second); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
			details["redis"] = "unavailable"
		}
	}

	c.JSON(code, gin.H{"status": status, "details": details})
}

// app holds the connections shared by every command.
type app struct {
	cfg     *config.Config
	repo    *models.GormRepository
	redis   utils.RedisClient
	cache   *utils.PageCache
	closers []func()
}

func newApp(migrate bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := models.Open(cfg.DBDriver, cfg.DBURL, cfg.Debug)
	if err != nil {
		return nil, err
	}
	repo := models.NewRepository(db)
	a := &app{cfg: cfg, repo: repo}
	a.closers = append(a.closers, func() {
		if err := repo.Close(); err != nil {
			logger.Printf("Error closing database: %v", err)
		}
	})

	if migrate {
		if err := models.Migrate(db); err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.RedisHost != "" {
		if err := a.connectRedis(); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// connectRedis пытается подключиться к Redis с ретраями.
func (a *app) connectRedis() error {
	var err error
	maxRetries := 5
	retryDelay := 3 * time.Second

	for i := 0; i < maxRetries; i++ {
		a.redis, err = utils.NewRedisClient(a.cfg.RedisHost, a.cfg.RedisPassword)
		if err == nil {
			break
		}
		logger.Printf("Attempt %d: Failed to connect to Redis: %v", i+1, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return err
	}

	client := a.redis
	a.cache = utils.NewPageCache(client, a.cfg.CacheTTL)
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			logger.Printf("Error closing Redis connection: %v", err)
		}
	})
	return nil
}

// publisher returns nil when Kafka is not configured or unreachable; a nil
// publisher drops events.
func (a *app) publisher() *events.Publisher {
	if a.cfg.KafkaBroker == "" {
		return nil
	}
	producer, err := utils.NewKafkaProducer(a.cfg.KafkaBroker)
	if err != nil {
		logger.Printf("Kafka disabled: %v", err)
		return nil
	}
	pub := events.NewPublisher(producer, a.cfg.KafkaTopic)
	a.closers = append(a.closers, func() {
		pub.Wait()
		if err := producer.Close(); err != nil {
			logger.Printf("Error closing Kafka producer: %v", err)
		}
	})
	return pub
}

// serviceIndex returns nil when Elasticsearch is not configured or
// unreachable.
func (a *app) serviceIndex(ctx context.Context) *search.ServiceIndex {
	if a.cfg.ElasticsearchURL == "" {
		return nil
	}
	es, err := utils.NewElasticsearchClient(a.cfg.ElasticsearchURL)
	if err != nil {
		logger.Printf("Elasticsearch disabled: %v", err)
		return nil
	}
	index := search.NewServiceIndex(es, a.cfg.SearchIndex)
	if err := index.Ensure(ctx); err != nil {
		logger.Printf("Elasticsearch disabled: %v", err)
		return nil
	}
	a.closers = append(a.closers, func() { es.Close() })
	return index
}

func (a *app) sender() services.Sender {
	if a.cfg.TwilioEnabled() {
		return services.NewTwilioSender(a.cfg.TwilioAccountSID, a.cfg.TwilioAuthToken, a.cfg.TwilioFrom)
	}
	return services.NewLogSender()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
