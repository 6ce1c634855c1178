package app

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/xenking/cemention/internal/auth"
	"github.com/xenking/cemention/internal/domain/cart"
	"github.com/xenking/cemention/internal/domain/invoice"
	"github.com/xenking/cemention/internal/domain/notify"
	"github.com/xenking/cemention/internal/domain/order"
	"github.com/xenking/cemention/internal/domain/pricing"
	"github.com/xenking/cemention/internal/domain/product"
	"github.com/xenking/cemention/internal/domain/requestorder"
	"github.com/xenking/cemention/internal/domain/user"
	"github.com/xenking/cemention/internal/handler"
	"github.com/xenking/cemention/internal/invoicepdf"
	"github.com/xenking/cemention/internal/notifier"
	"github.com/xenking/cemention/internal/storage/mongo"
	"github.com/xenking/cemention/internal/storage/postgres"
	"github.com/xenking/cemention/pkg/health"
	"github.com/xenking/cemention/pkg/httpmiddleware"
)

// repositories is the storage backend picked by StorageConfig.Driver.
type repositories struct {
	users    user.Repository
	products product.Repository
	carts    cart.Repository
	orders   order.Repository
	invoices order.InvoiceStore
	requests requestorder.Repository

	name  string
	ping  health.Pinger
	close func()
}

func openStorage(ctx context.Context, lg *zap.Logger, cfg StorageConfig) (*repositories, error) {
	switch cfg.Driver {
	case DriverMongo:
		client, err := mongo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, errors.Wrap(err, "connect mongo")
		}
		db := client.Database(cfg.MongoDatabase)
		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, errors.Wrap(err, "ensure indexes")
		}
		store := mongo.NewStore(db)
		lg.Info("Using MongoDB storage", zap.String("database", cfg.MongoDatabase))
		return &repositories{
			users:    store.Users,
			products: store.Products,
			carts:    store.Carts,
			orders:   store.Orders,
			invoices: store.Invoices,
			requests: store.RequestOrders,
			name:     DriverMongo,
			ping: health.PingFunc(func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			}),
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(ctx)
			},
		}, nil
	default:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		store := postgres.NewStore(pool)
		lg.Info("Using PostgreSQL storage")
		return &repositories{
			users:    store.Users,
			products: store.Products,
			carts:    store.Carts,
			orders:   store.Orders,
			invoices: store.Invoices,
			requests: store.RequestOrders,
			name:     DriverPostgres,
			ping:     pool,
			close:    pool.Close,
		}, nil
	}
}

// newSender returns the Kafka publisher when brokers are configured and the
// log sender otherwise. The closer flushes pending messages.
func newSender(lg *zap.Logger, cfg NotifyConfig) (notify.Sender, io.Closer) {
	if len(cfg.Kafka.Brokers) == 0 {
		lg.Info("Notifications are logged only; no Kafka brokers configured")
		return notifier.NewLogSender(), io.NopCloser(nil)
	}
	lg.Info("Publishing notifications to Kafka",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
	)
	s := notifier.NewKafkaSender(notifier.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	return s, s
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.TelemetryProvider, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("storage", cfg.Storage.Driver))

	repos, err := openStorage(ctx, lg, cfg.Storage)
	if err != nil {
		return err
	}
	defer repos.close()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck(repos.name, 5*time.Second, health.PingCheck(repos.ping))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Pricing and quantity rules.
	rates, err := cfg.Pricing.Rates()
	if err != nil {
		return errors.Wrap(err, "pricing config")
	}
	engine := pricing.NewEngine(rates)
	policy := cfg.Pricing.Policy()

	// Notifications and invoices.
	sender, closeSender := newSender(lg, cfg.Notify)
	defer func() {
		if err := closeSender.Close(); err != nil {
			lg.Warn("Close notification sender", zap.Error(err))
		}
	}()
	composer := notify.NewComposer(cfg.Company.Identity(), cfg.Notify.CountryCode)
	renderer := invoicepdf.NewRenderer(
		invoice.NewRenderer(cfg.Company.Issuer(), engine, policy.MinQty),
		invoicepdf.NewWriter(),
	)

	// Domain services.
	orderService, err := order.NewService(order.Deps{
		Orders:   repos.orders,
		Products: repos.products,
		Users:    repos.users,
		Carts:    repos.carts,
		Invoices: repos.invoices,
		Renderer: renderer,
		Notifier: notify.NewDispatcher(composer, sender),
		Pricing:  engine,
		Policy:   policy,
	},
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return errors.Wrap(err, "create token issuer")
	}

	// HTTP handlers.
	h := handler.New(handler.Deps{
		Accounts:  auth.NewService(repos.users, tokens, cfg.Auth.BcryptCost),
		Users:     user.NewService(repos.users),
		Catalog:   product.NewService(repos.products),
		Carts:     cart.NewService(repos.carts, repos.products, engine),
		Orders:    orderService,
		Enquiries: requestorder.NewService(repos.requests),
		Pricing:   engine,
	})

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				ExposeHeaders:    []string{"Content-Disposition", httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   httpmiddleware.SkipPaths("/livez", "/readyz"),
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("cemention-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	healthSvc.SetReady(true)
	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
