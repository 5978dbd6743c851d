package db

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-stock-ledger/config"
	"github.com/sksmith/go-stock-ledger/core"
)

// Conn is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Conn interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type dbconfig struct {
	timeZone              string
	sslMode               string
	poolMaxConns          int32
	poolMinConns          int32
	poolMaxConnLifetime   time.Duration
	poolMaxConnIdleTime   time.Duration
	poolHealthCheckPeriod time.Duration
}

type configOption func(cn *dbconfig)

func MinPoolConns(minConns int32) func(cn *dbconfig) {
	return func(c *dbconfig) {
		c.poolMinConns = minConns
	}
}

func MaxPoolConns(maxConns int32) func(cn *dbconfig) {
	return func(c *dbconfig) {
		c.poolMaxConns = maxConns
	}
}

func newDbConfig() dbconfig {
	return dbconfig{
		sslMode:               "disable",
		timeZone:              "UTC",
		poolMaxConns:          4,
		poolMinConns:          0,
		poolMaxConnLifetime:   time.Hour,
		poolMaxConnIdleTime:   time.Minute * 30,
		poolHealthCheckPeriod: time.Minute,
	}
}

func formatOption(url, option string, value interface{}) string {
	return url + " " + option + "=" + fmt.Sprintf("%v", value)
}

func addOptionsToConnStr(connStr string, options ...configOption) string {
	config := newDbConfig()
	for _, option := range options {
		option(&config)
	}

	connStr = formatOption(connStr, "sslmode", config.sslMode)
	connStr = formatOption(connStr, "TimeZone", config.timeZone)
	connStr = formatOption(connStr, "pool_max_conns", config.poolMaxConns)
	connStr = formatOption(connStr, "pool_min_conns", config.poolMinConns)
	connStr = formatOption(connStr, "pool_max_conn_lifetime", config.poolMaxConnLifetime)
	connStr = formatOption(connStr, "pool_max_conn_idle_time", config.poolMaxConnIdleTime)
	connStr = formatOption(connStr, "pool_health_check_period", config.poolHealthCheckPeriod)

	return connStr
}

// ConnectDb runs migrations when configured to and then blocks until a pool can be established or ctx is done.
func ConnectDb(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	log.Info().Str("host", cfg.Db.Host.Value).Str("name", cfg.Db.Name.Value).Msg("connecting to the database...")

	if cfg.Db.Migrate.Value {
		log.Info().Msg("executing migrations")

		if err := RunMigrations(
			cfg.Db.Host.Value,
			cfg.Db.Name.Value,
			cfg.Db.Port.Value,
			cfg.Db.User.Value,
			cfg.Db.Pass.Value,
			cfg.Db.Clean.Value); err != nil {
			log.Warn().Err(err).Msg("error executing migrations")
		}
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s",
		cfg.Db.Host.Value, cfg.Db.Port.Value, cfg.Db.User.Value, cfg.Db.Pass.Value, cfg.Db.Name.Value)

	url := addOptionsToConnStr(connStr, MinPoolConns(int32(cfg.Db.Pool.MinSize.Value)), MaxPoolConns(int32(cfg.Db.Pool.MaxSize.Value)))
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	poolConfig.ConnConfig.Logger = logger{}

	for {
		pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
		if err == nil {
			return pool, nil
		}
		log.Error().Err(err).Msg("failed to create connection pool... retrying")

		select {
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		case <-time.After(time.Second):
		}
	}
}

type logger struct {
}

func (l logger) Log(ctx context.Context, level pgx.LogLevel, msg string, data map[string]interface{}) {
	var evt *zerolog.Event
	switch level {
	case pgx.LogLevelTrace:
		evt = log.Trace()
	case pgx.LogLevelDebug:
		evt = log.Debug()
	case pgx.LogLevelInfo:
		evt = log.Debug()
	case pgx.LogLevelWarn:
		evt = log.Warn()
	case pgx.LogLevelError:
		evt = log.Error()
	default:
		evt = log.Info()
	}

	for k, v := range data {
		evt.Interface(k, v)
	}

	evt.Msg(msg)
}

func RunMigrations(host, database, port, user, password string, clean bool) error {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, database)
	m, err := migrate.New("file://db/migrations", connStr)
	if err != nil {
		return errors.WithStack(err)
	}
	defer m.Close()

	if clean {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return errors.WithStack(err)
		}
	}
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return errors.WithStack(err)
		}
		log.Info().Msg("schema is up to date")
	}

	return nil
}

// GetQueryOptions picks the transaction out of the options when there is one, falling back to cn.
func GetQueryOptions(cn Conn, options ...core.QueryOptions) (conn Conn, forUpdate string) {
	conn = cn
	if len(options) > 0 {
		if tx, ok := options[0].Tx.(Conn); ok && tx != nil {
			conn = tx
		}

		if options[0].ForUpdate {
			forUpdate = "FOR UPDATE"
		}
	}

	return conn, forUpdate
}

func GetUpdateOptions(cn Conn, options ...core.UpdateOptions) (conn Conn) {
	conn = cn
	if len(options) > 0 {
		if tx, ok := options[0].Tx.(Conn); ok && tx != nil {
			conn = tx
		}
	}

	return conn
}

const (
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
	checkViolation       = "23514"
	uniqueViolation      = "23505"
)

// MapError turns postgres errors that mean "lost a race with another writer" into core.ErrConflict and no rows
// into core.ErrNotFound.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.WithStack(core.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case serializationFailure, deadlockDetected, checkViolation, uniqueViolation:
			return errors.WithMessage(core.ErrConflict, pgErr.Message)
		}
	}
	return errors.WithStack(err)
}
