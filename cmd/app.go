package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/bunnyq"
	"github.com/sksmith/go-stock-ledger/api"
	"github.com/sksmith/go-stock-ledger/config"
	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/inventory"
	"github.com/sksmith/go-stock-ledger/core/location"
	"github.com/sksmith/go-stock-ledger/core/user"
	"github.com/sksmith/go-stock-ledger/db"
	"github.com/sksmith/go-stock-ledger/db/invrepo"
	"github.com/sksmith/go-stock-ledger/db/locrepo"
	"github.com/sksmith/go-stock-ledger/db/memrepo"
	"github.com/sksmith/go-stock-ledger/db/stockcache"
	"github.com/sksmith/go-stock-ledger/db/usrrepo"
	"github.com/sksmith/go-stock-ledger/lock"
	"github.com/sksmith/go-stock-ledger/queue"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const lockPrefix = "stock-ledger:lock:"

type app struct {
	cfg          *config.Config
	router       chi.Router
	orchestrator *inventory.Orchestrator
	users        user.Service
	bq           *bunnyq.BunnyQ
	closers      []func(ctx context.Context) error
}

type repositories struct {
	ledger    inventory.Repository
	locations location.Repository
	users     user.Repository
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	if err := a.configTracing(ctx); err != nil {
		return nil, err
	}

	repos, err := a.configRepositories(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	locker, err := a.configLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	locations := location.NewService(repos.locations)

	log.Info().Msg("creating transfer orchestrator...")
	var balances inventory.BalanceReader = repos.ledger
	options := []inventory.Option{
		inventory.WithLocker(locker),
		inventory.WithQueue(a.configMovementQueue()),
		inventory.WithRetry(cfg.Transfer.MaxAttempts.Value, cfg.Transfer.Backoff.Value),
	}
	if cfg.Cache.Size.Value > 0 {
		cache, err := stockcache.New(repos.ledger, cfg.Cache.Size.Value)
		if err != nil {
			a.Close()
			return nil, err
		}
		balances = cache
		options = append(options, inventory.WithCache(cache))
	}
	a.orchestrator = inventory.NewOrchestrator(repos.ledger, locations, options...)

	log.Info().Msg("creating user service...")
	a.users = user.NewService(repos.users)
	if cfg.Seed.Admin.Value {
		if err = seedAdmin(ctx, cfg, a.users); err != nil {
			a.Close()
			return nil, err
		}
	}

	log.Info().Msg("configuring router...")
	a.router = api.ConfigureRouter(cfg, api.Services{
		Transfers: a.orchestrator,
		Stock:     inventory.NewAggregator(balances, repos.ledger, locations),
		Movements: inventory.NewQueryService(repos.ledger, locations),
		Locations: locations,
		Users:     a.users,
	})

	return a, nil
}

// Close releases everything newApp opened, most recent first.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.Warn().Err(err).Msg("failed to release resource")
		}
	}
	a.closers = nil
}

func (a *app) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *app) configTracing(ctx context.Context) error {
	endpoint := a.cfg.Tracing.Endpoint.Value
	if endpoint == "" {
		log.Info().Msg("tracing disabled")
		return nil
	}

	log.Info().Str("endpoint", endpoint).Msg("configuring tracing...")
	options := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if a.cfg.Tracing.Insecure.Value {
		options = append(options, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, options...)
	if err != nil {
		return errors.WithMessage(err, "failed to create trace exporter")
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	a.onClose(tp.Shutdown)
	return nil
}

func (a *app) configRepositories(ctx context.Context) (repositories, error) {
	if a.cfg.Db.InMemory.Value {
		log.Info().Msg("using the in memory database")
		store := memrepo.New()
		return repositories{ledger: store.Ledger(), locations: store.Locations(), users: store.Users()}, nil
	}

	pool, err := db.ConnectDb(ctx, a.cfg)
	if err != nil {
		return repositories{}, err
	}
	a.onClose(func(context.Context) error {
		pool.Close()
		return nil
	})

	return repositories{
		ledger:    invrepo.NewPostgresRepo(pool),
		locations: locrepo.NewPostgresRepo(pool),
		users:     usrrepo.NewPostgresRepo(pool),
	}, nil
}

func (a *app) configLocker(ctx context.Context) (inventory.Locker, error) {
	if !a.cfg.Redis.Enabled.Value {
		log.Info().Msg("using in process stock locks")
		return lock.NewLocal(), nil
	}

	log.Info().Str("addr", a.cfg.Redis.Addr.Value).Msg("connecting to redis...")
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr.Value,
		Password: a.cfg.Redis.Pass.Value,
		DB:       a.cfg.Redis.DB.Value,
	})
	a.onClose(func(context.Context) error { return client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.WithMessage(err, "failed to reach redis")
	}
	return lock.NewRedis(client, lockPrefix, a.cfg.Redis.LockTTL.Value, a.cfg.Redis.LockWait.Value), nil
}

func (a *app) configMovementQueue() inventory.Queue {
	if a.cfg.RabbitMQ.Mock.Value {
		log.Info().Msg("creating mock queue...")
		return queue.NewMockQueue()
	}

	log.Info().Msg("connecting to rabbitmq...")
	return queue.NewMovementQueue(a.rabbit(), a.cfg.RabbitMQ.Movement.Exchange.Value)
}

// consumeSales records sales published by point of sale systems until ctx is done.
func (a *app) consumeSales(ctx context.Context) {
	if a.cfg.RabbitMQ.Mock.Value {
		return
	}

	log.Info().Str("queue", a.cfg.RabbitMQ.Sale.Queue.Value).Msg("consuming sales...")
	sales := queue.NewSaleQueue(a.rabbit(), a.cfg.RabbitMQ.Sale.Queue.Value, a.cfg.RabbitMQ.Sale.DltExchange.Value)
	go sales.ConsumeSales(ctx, a.orchestrator)
}

func (a *app) rabbit() *bunnyq.BunnyQ {
	if a.bq != nil {
		return a.bq
	}

	osChannel := make(chan os.Signal, 1)
	signal.Notify(osChannel, syscall.SIGTERM)

	a.bq = bunnyq.New(context.Background(),
		bunnyq.Address{
			User: a.cfg.RabbitMQ.User.Value,
			Pass: a.cfg.RabbitMQ.Pass.Value,
			Host: a.cfg.RabbitMQ.Host.Value,
			Port: a.cfg.RabbitMQ.Port.Value,
		},
		osChannel,
		bunnyq.LogHandler(bunnyLogger{}),
	)
	return a.bq
}

type bunnyLogger struct {
}

func (l bunnyLogger) Log(_ context.Context, level bunnyq.LogLevel, msg string, data map[string]interface{}) {
	var evt *zerolog.Event
	switch level {
	case bunnyq.LogLevelTrace:
		evt = log.Trace()
	case bunnyq.LogLevelDebug:
		evt = log.Debug()
	case bunnyq.LogLevelWarn:
		evt = log.Warn()
	case bunnyq.LogLevelError:
		evt = log.Error()
	default:
		evt = log.Info()
	}

	for k, v := range data {
		evt.Interface(k, v)
	}

	evt.Msg(msg)
}

func seedAdmin(ctx context.Context, cfg *config.Config, users user.Service) error {
	_, err := users.Get(ctx, cfg.Seed.User.Value)
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return errors.WithMessage(err, "failed to look up the admin user")
	}

	log.Info().Str("username", cfg.Seed.User.Value).Str("businessId", cfg.Seed.BusinessID.Value).Msg("seeding admin user")
	_, err = users.Create(ctx, user.CreateUserRequest{
		Username:          cfg.Seed.User.Value,
		BusinessID:        cfg.Seed.BusinessID.Value,
		IsAdmin:           true,
		PlainTextPassword: cfg.Seed.Pass.Value,
	})
	return err
}
