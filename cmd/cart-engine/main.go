package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_cart/cart-engine/configs"
	"github.com/fjod/go_cart/cart-engine/internal/cache"
	"github.com/fjod/go_cart/cart-engine/internal/catalog"
	"github.com/fjod/go_cart/cart-engine/internal/coupon"
	h "github.com/fjod/go_cart/cart-engine/internal/http"
	"github.com/fjod/go_cart/cart-engine/internal/lifecycle"
	"github.com/fjod/go_cart/cart-engine/internal/logging"
	"github.com/fjod/go_cart/cart-engine/internal/notify"
	"github.com/fjod/go_cart/cart-engine/internal/poller"
	"github.com/fjod/go_cart/cart-engine/internal/repository"
	"github.com/fjod/go_cart/cart-engine/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg, err := configs.Load(getEnv("CONFIG_DIR", "configs"), getEnv("APP_ENV", ""))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.Init(logging.Options{
		Component: cfg.App.Name,
		FilePath:  cfg.App.LogFile,
		Level:     cfg.App.LogLevel,
	})

	// trace context from the gateway flows through to catalog calls
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if err := run(cfg, log); err != nil {
		log.Error("cart engine stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg configs.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	repo, err := openRepository(ctx, cfg, log, &closers)
	if err != nil {
		return err
	}

	cartCache, err := openCache(ctx, cfg, log, &closers)
	if err != nil {
		return err
	}

	lookup, err := openCatalog(cfg)
	if err != nil {
		return err
	}

	coupons, err := cfg.CouponDefinitions()
	if err != nil {
		return err
	}
	currency, err := cfg.DefaultCurrency()
	if err != nil {
		return err
	}

	svc := service.NewCartService(repo, cartCache, lookup,
		service.WithCouponDirectory(coupon.NewStaticDirectory(coupons...)),
		service.WithDefaultCurrency(currency),
	)

	notifier, err := openNotifier(cfg, &closers)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	scheduler := lifecycle.NewScheduler(svc, notifier, cfg.Lifecycle.Interval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	if len(cfg.Kafka.Brokers) > 0 {
		p := poller.NewPoller(svc, cfg.Kafka.CheckoutTopic, cfg.Kafka.GroupID, cfg.Kafka.Brokers...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.Close()
			p.Run(ctx)
		}()
		log.Info("checkout consumer started", "topic", cfg.Kafka.CheckoutTopic, "brokers", cfg.Kafka.Brokers)
	}

	grpcServer, healthServer, err := startGRPC(cfg.App.GRPCAddr, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      newRouter(svc, cfg.HTTP.RequestTimeout),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server starting", "addr", cfg.App.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		stop()
	}

	log.Info("shutting down cart engine")
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if e := srv.Shutdown(shutdownCtx); e != nil {
		log.Error("http server forced to shutdown", "error", e)
	}
	grpcServer.GracefulStop()
	wg.Wait()

	log.Info("cart engine stopped")
	return err
}

func newRouter(svc *service.CartService, timeout time.Duration) http.Handler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cartHandler := h.NewCartHandler(svc, timeout)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", cartHandler.Routes)
	})
	return otelhttp.NewHandler(r, "cart-engine")
}

func openRepository(ctx context.Context, cfg configs.Config, log *slog.Logger, closers *[]io.Closer) (repository.CartRepository, error) {
	switch cfg.Store.Driver {
	case "mongo":
		db, err := repository.ConnectMongoDB(ctx, repository.MongoConfig{
			URI:         cfg.Store.Mongo.URI,
			Database:    cfg.Store.Mongo.Database,
			MaxPoolSize: cfg.Store.Mongo.MaxPoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		*closers = append(*closers, closerFunc(func() error {
			return db.Client().Disconnect(context.Background())
		}))
		repo := repository.NewMongoRepository(db)
		if err := repo.CreateIndexes(ctx); err != nil {
			return nil, fmt.Errorf("create indexes: %w", err)
		}
		log.Info("using mongo store", "database", cfg.Store.Mongo.Database)
		return repo, nil

	case "postgres":
		pg := cfg.Store.Postgres
		cred := &repository.Credentials{
			Host:              pg.Host,
			Port:              pg.Port,
			User:              pg.User,
			Password:          pg.Password,
			DBName:            pg.DBName,
			MigrationsDirPath: pg.MigrationsDir,
		}
		repo, err := repository.NewPostgresRepository(ctx, cred)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, repo)
		if err := repo.RunMigrations(cred); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return repo, nil

	default:
		log.Warn("using in-memory store, carts are lost on restart")
		return repository.NewMemoryRepository(), nil
	}
}

func openCache(ctx context.Context, cfg configs.Config, log *slog.Logger, closers *[]io.Closer) (cache.CartCache, error) {
	if cfg.Redis.Addr == "" {
		return cache.Noop{}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	*closers = append(*closers, client)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("redis cache enabled", "addr", cfg.Redis.Addr)
	return cache.NewRedisCache(client, cfg.Redis.TTL), nil
}

func openCatalog(cfg configs.Config) (catalog.Lookup, error) {
	if cfg.Catalog.URL != "" {
		return catalog.NewHTTPClient(catalog.HTTPClientConfig{
			BaseURL:     cfg.Catalog.URL,
			Timeout:     cfg.Catalog.Timeout,
			MaxFailures: cfg.Catalog.MaxFailures,
			OpenTimeout: cfg.Catalog.OpenTimeout,
		}), nil
	}
	items, err := cfg.CatalogItems()
	if err != nil {
		return nil, err
	}
	return catalog.NewStaticCatalog(items...), nil
}

func openNotifier(cfg configs.Config, closers *[]io.Closer) (notify.Notifier, error) {
	switch cfg.Notifier.Kind {
	case "kafka":
		n := notify.NewKafkaNotifier(cfg.Notifier.Topic, cfg.Kafka.Brokers...)
		*closers = append(*closers, n)
		return n, nil
	case "sendgrid":
		sg := cfg.Notifier.SendGrid
		return notify.NewSendGridNotifier(notify.SendGridConfig{
			APIKey:    sg.APIKey,
			FromEmail: sg.FromEmail,
			FromName:  sg.FromName,
		}, notify.NewStaticAddressBook(cfg.Notifier.Addresses))
	default:
		return notify.NewLogNotifier(), nil
	}
}

// startGRPC serves the standard health service so orchestrators can probe the engine.
func startGRPC(addr string, log *slog.Logger) (*grpc.Server, *health.Server, error) {
	if addr == "" {
		addr = ":50051"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(grpcServer)

	go func() {
		log.Info("grpc health server listening", "addr", addr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("grpc server stopped", "error", err)
		}
	}()
	return grpcServer, healthServer, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
