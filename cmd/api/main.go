package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/api"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/api/handler"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/config"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/infrastructure/rabbitmq"
	redisinfra "github.com/sanosuguru/go-cinema-ticket-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/ordernumber"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/worker"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logger.Fatal("設定の読み込みに失敗", zap.Error(err))
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("設定が不正です", zap.Error(err))
	}

	logger.Init(cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("サーバーが異常終了しました", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("サーバーが正常にシャットダウンしました")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.Init()

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
		return err
	}

	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisinfra.NewClient(&cfg.Redis)
		if err != nil {
			// ロックとキャッシュなしでも DB の行ロックで整合性は保たれる
			logger.Warn("Redisに接続できないため、ロックとキャッシュなしで起動します", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var publisher *rabbitmq.Publisher
	if cfg.RabbitMQ.Enabled {
		publisher = rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
	}

	orders, seats, coupons, pricingEngine := buildServices(cfg, db, redisClient, publisher)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Validator = api.NewValidator()
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	middleware.SetupMiddleware(e, m)

	handler.RegisterRoutes(e, handler.Handlers{
		Health:      handler.NewHealthHandler(healthChecks(db, redisClient)),
		Reservation: handler.NewReservationHandler(orders),
		AdminOrder:  handler.NewAdminOrderHandler(orders),
		Seat:        handler.NewSessionSeatHandler(seats),
		Coupon:      handler.NewCouponHandler(coupons),
		Payment:     handler.NewPaymentHandler(orders),
		TicketType:  handler.NewTicketTypeHandler(pricingEngine),
	}, handler.RouteConfig{
		JWTSecret:       cfg.Auth.JWTSecret,
		CallbackToken:   cfg.Auth.PaymentCallbackToken,
		MetricsUser:     cfg.Auth.MetricsUser,
		MetricsPassword: cfg.Auth.MetricsPassword,
		MetricsHandler:  promhttp.Handler(),
	})

	reaper := worker.NewReservationExpiryReaper(orders, cfg.Reservation.ReaperInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("サーバーを起動します", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		reaper.Start(gctx)
		return nil
	})

	if publisher != nil {
		g.Go(func() error {
			publisher.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("サーバーをシャットダウンしています...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func buildServices(cfg *config.Config, db *sqlx.DB, redisClient *goredis.Client, publisher *rabbitmq.Publisher) (*application.OrderService, *application.SeatInventory, *application.CouponService, *application.PricingEngine) {
	clk := clock.NewSystem()
	txManager := postgres.NewTxManager(db)
	catalogRepo := postgres.NewCatalogRepository(db)

	// nil ポインタをインターフェースに入れないよう、有効なときだけ代入する
	var (
		lockManager redisinfra.LockManagerInterface
		seatCache   redisinfra.SeatCacheInterface
		notifier    application.Notifier = application.NopNotifier{}
	)
	if redisClient != nil {
		lockManager = redisinfra.NewLockManager(redisClient)
		seatCache = redisinfra.NewSeatCache(redisClient)
	}
	if publisher != nil {
		notifier = publisher
	}

	seats := application.NewSeatInventory(txManager, postgres.NewSessionSeatRepository(db), catalogRepo, seatCache, cfg.Reservation.SeatCacheTTL, clk)
	pricingEngine := application.NewPricingEngine(postgres.NewPricingRepository(db))
	coupons := application.NewCouponService(txManager, postgres.NewCouponRepository(db), catalogRepo, clk)

	orders := application.NewOrderService(application.OrderServiceDeps{
		TxManager: txManager,
		OrderRepo: postgres.NewOrderRepository(db),
		Catalog:   catalogRepo,
		Seats:     seats,
		Pricing:   pricingEngine,
		Coupons:   coupons,
		Codec: ordernumber.New(
			ordernumber.WithPrefix(cfg.Reservation.OrderNumberPrefix),
			ordernumber.WithSalt(cfg.Reservation.OrderNumberSalt),
			ordernumber.WithClock(clk),
			ordernumber.WithLocation(cfg.Reservation.OrderNumberLocation),
		),
		LockManager: lockManager,
		Notifier:    notifier,
		Clock:       clk,
	}, application.OrderServiceConfig{
		OnlineHold:      cfg.Reservation.OnlineHold,
		CounterHoldLead: cfg.Reservation.CounterHoldLead,
		RefundCutoff:    cfg.Reservation.RefundCutoff,
		SeatLockTTL:     cfg.Reservation.SeatLockTTL,
		BatchSize:       cfg.Reservation.ReaperBatchSize,
	})

	return orders, seats, coupons, pricingEngine
}

func healthChecks(db *sqlx.DB, redisClient *goredis.Client) map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisinfra.Ping(ctx, redisClient)
		}
	}
	return checks
}
