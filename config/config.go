package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	sc "github.com/sksmith/go-spring-config"
	"github.com/spf13/viper"
)

const (
	AppName   = "Go Stock Ledger"
	Revision  = "1"
	EnvPrefix = "STOCK_LEDGER"
)

var (
	// Build time arguments
	AppVersion  string
	Sha1Version string
	BuildTime   string
)

type StringConfig struct {
	Value       string `json:"value"`
	Default     string `json:"default"`
	Description string `json:"description"`
}

type BoolConfig struct {
	Value       bool   `json:"value"`
	Default     bool   `json:"default"`
	Description string `json:"description"`
}

type IntConfig struct {
	Value       int    `json:"value"`
	Default     int    `json:"default"`
	Description string `json:"description"`
}

type DurationConfig struct {
	Value       time.Duration `json:"value"`
	Default     time.Duration `json:"default"`
	Description string        `json:"description"`
}

type Config struct {
	AppName     StringConfig   `json:"appName"`
	AppVersion  StringConfig   `json:"appVersion"`
	Sha1Version StringConfig   `json:"sha1Version"`
	BuildTime   StringConfig   `json:"buildTime"`
	Profile     StringConfig   `json:"profile"`
	Revision    StringConfig   `json:"revision"`
	Port        StringConfig   `json:"port"`
	Config      ConfigSource   `json:"config"`
	Log         LogConfig      `json:"log"`
	Db          DbConfig       `json:"db"`
	RabbitMQ    QueueConfig    `json:"rabbitmq"`
	Redis       RedisConfig    `json:"redis"`
	Transfer    TransferConfig `json:"transfer"`
	Cache       CacheConfig    `json:"cache"`
	Tracing     TracingConfig  `json:"tracing"`
	Seed        SeedConfig     `json:"seed"`
}

type ConfigSource struct {
	Print  BoolConfig   `json:"print"`
	Source StringConfig `json:"source"`
	Spring SpringConfig `json:"spring"`
}

type SpringConfig struct {
	Url    StringConfig `json:"url"`
	Branch StringConfig `json:"branch"`
	User   StringConfig `json:"user"`
	Pass   StringConfig `json:"pass"`
}

type LogConfig struct {
	Level      StringConfig `json:"level"`
	Structured BoolConfig   `json:"structured"`
}

type DbConfig struct {
	Name     StringConfig `json:"name"`
	Host     StringConfig `json:"host"`
	Port     StringConfig `json:"port"`
	Migrate  BoolConfig   `json:"migrate"`
	Clean    BoolConfig   `json:"clean"`
	InMemory BoolConfig   `json:"inMemory"`
	User     StringConfig `json:"user"`
	Pass     StringConfig `json:"pass"`
	Pool     PoolConfig   `json:"pool"`
}

type PoolConfig struct {
	MinSize IntConfig `json:"minSize"`
	MaxSize IntConfig `json:"maxSize"`
}

type QueueConfig struct {
	Host     StringConfig        `json:"host"`
	Port     StringConfig        `json:"port"`
	User     StringConfig        `json:"user"`
	Pass     StringConfig        `json:"pass"`
	Mock     BoolConfig          `json:"mock"`
	Movement MovementQueueConfig `json:"movement"`
	Sale     SaleQueueConfig     `json:"sale"`
}

type MovementQueueConfig struct {
	Exchange StringConfig `json:"exchange"`
}

type SaleQueueConfig struct {
	Queue       StringConfig `json:"queue"`
	DltExchange StringConfig `json:"dltExchange"`
}

type RedisConfig struct {
	Enabled  BoolConfig     `json:"enabled"`
	Addr     StringConfig   `json:"addr"`
	Pass     StringConfig   `json:"pass"`
	DB       IntConfig      `json:"db"`
	LockTTL  DurationConfig `json:"lockTtl"`
	LockWait DurationConfig `json:"lockWait"`
}

type TransferConfig struct {
	MaxAttempts IntConfig      `json:"maxAttempts"`
	Backoff     DurationConfig `json:"backoff"`
}

type CacheConfig struct {
	Size IntConfig `json:"size"`
}

type TracingConfig struct {
	Endpoint StringConfig `json:"endpoint"`
	Insecure BoolConfig   `json:"insecure"`
}

type SeedConfig struct {
	Admin      BoolConfig   `json:"admin"`
	User       StringConfig `json:"user"`
	Pass       StringConfig `json:"pass"`
	BusinessID StringConfig `json:"businessId"`
}

type value interface {
	defaultValue() interface{}
	read(v *viper.Viper, key string)
}

func (c *StringConfig) defaultValue() interface{} { return c.Default }
func (c *StringConfig) read(v *viper.Viper, key string) {
	c.Value = v.GetString(key)
}

func (c *BoolConfig) defaultValue() interface{} { return c.Default }
func (c *BoolConfig) read(v *viper.Viper, key string) {
	c.Value = v.GetBool(key)
}

func (c *IntConfig) defaultValue() interface{} { return c.Default }
func (c *IntConfig) read(v *viper.Viper, key string) {
	c.Value = v.GetInt(key)
}

func (c *DurationConfig) defaultValue() interface{} { return c.Default }
func (c *DurationConfig) read(v *viper.Viper, key string) {
	c.Value = v.GetDuration(key)
}

func (c *Config) settings() map[string]value {
	return map[string]value{
		"appName":     &c.AppName,
		"appVersion":  &c.AppVersion,
		"sha1Version": &c.Sha1Version,
		"buildTime":   &c.BuildTime,
		"profile":     &c.Profile,
		"revision":    &c.Revision,
		"port":        &c.Port,

		"config.print":         &c.Config.Print,
		"config.source":        &c.Config.Source,
		"config.spring.url":    &c.Config.Spring.Url,
		"config.spring.branch": &c.Config.Spring.Branch,
		"config.spring.user":   &c.Config.Spring.User,
		"config.spring.pass":   &c.Config.Spring.Pass,

		"log.level":      &c.Log.Level,
		"log.structured": &c.Log.Structured,

		"db.name":         &c.Db.Name,
		"db.host":         &c.Db.Host,
		"db.port":         &c.Db.Port,
		"db.migrate":      &c.Db.Migrate,
		"db.clean":        &c.Db.Clean,
		"db.inMemory":     &c.Db.InMemory,
		"db.user":         &c.Db.User,
		"db.pass":         &c.Db.Pass,
		"db.pool.minSize": &c.Db.Pool.MinSize,
		"db.pool.maxSize": &c.Db.Pool.MaxSize,

		"rabbitmq.host":              &c.RabbitMQ.Host,
		"rabbitmq.port":              &c.RabbitMQ.Port,
		"rabbitmq.user":              &c.RabbitMQ.User,
		"rabbitmq.pass":              &c.RabbitMQ.Pass,
		"rabbitmq.mock":              &c.RabbitMQ.Mock,
		"rabbitmq.movement.exchange": &c.RabbitMQ.Movement.Exchange,
		"rabbitmq.sale.queue":        &c.RabbitMQ.Sale.Queue,
		"rabbitmq.sale.dltExchange":  &c.RabbitMQ.Sale.DltExchange,

		"redis.enabled":  &c.Redis.Enabled,
		"redis.addr":     &c.Redis.Addr,
		"redis.pass":     &c.Redis.Pass,
		"redis.db":       &c.Redis.DB,
		"redis.lockTtl":  &c.Redis.LockTTL,
		"redis.lockWait": &c.Redis.LockWait,

		"transfer.maxAttempts": &c.Transfer.MaxAttempts,
		"transfer.backoff":     &c.Transfer.Backoff,

		"cache.size": &c.Cache.Size,

		"tracing.endpoint": &c.Tracing.Endpoint,
		"tracing.insecure": &c.Tracing.Insecure,

		"seed.admin":      &c.Seed.Admin,
		"seed.user":       &c.Seed.User,
		"seed.pass":       &c.Seed.Pass,
		"seed.businessId": &c.Seed.BusinessID,
	}
}

func (c *Config) Print() {
	if c.Config.Print.Value {
		log.Info().Interface("config", c.Scrubbed()).Msg("the following configurations have successfully loaded")
	}
}

// Scrubbed returns a copy of the config that is safe to log or expose.
func (c *Config) Scrubbed() Config {
	cp := *c
	for _, s := range []*StringConfig{&cp.Db.Pass, &cp.RabbitMQ.Pass, &cp.Redis.Pass, &cp.Config.Spring.Pass, &cp.Seed.Pass} {
		if s.Value != "" {
			s.Value = "****"
		}
	}
	return cp
}

// LoadDefaults returns the configuration without consulting any file, environment variable or config server.
func LoadDefaults() *Config {
	cfg := newConfig()
	v := viper.New()
	for key, s := range cfg.settings() {
		v.SetDefault(key, s.defaultValue())
	}
	for key, s := range cfg.settings() {
		s.read(v, key)
	}
	return cfg
}

// Load reads <configName>.yaml from the working directory when present, then environment variables prefixed with
// STOCK_LEDGER_ (e.g. STOCK_LEDGER_DB_HOST), then the spring config server when config.source is spring.
// Overrides, typically from command line flags, win over everything.
func Load(configName string, overrides ...map[string]interface{}) *Config {
	cfg, err := load(configName, overrides...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configurations")
	}
	return cfg
}

func load(configName string, overrides ...map[string]interface{}) (*Config, error) {
	cfg := newConfig()
	v := viper.New()
	for key, s := range cfg.settings() {
		v.SetDefault(key, s.defaultValue())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := loadLocalConfigs(v, configName); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		for k, val := range o {
			v.Set(k, val)
		}
	}

	switch src := v.GetString("config.source"); src {
	case "local", "":
	case "spring":
		if err := loadRemoteConfigs(v); err != nil {
			return nil, err
		}
		for _, o := range overrides {
			for k, val := range o {
				v.Set(k, val)
			}
		}
	default:
		log.Warn().
			Str("configSource", src).
			Msg("unrecognized configuration source, using local")
	}

	for key, s := range cfg.settings() {
		s.read(v, key)
	}
	return cfg, nil
}

func loadLocalConfigs(v *viper.Viper, configName string) error {
	log.Info().Str("configName", configName).Msg("loading local configurations...")

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Info().Str("configName", configName).Msg("no config file found, using defaults and environment")
			return nil
		}
		return errors.WithMessage(err, "failed to read config file")
	}
	return nil
}

const maxRetries = 5

func loadRemoteConfigs(v *viper.Viper) error {
	url := v.GetString("config.spring.url")
	log.Info().Str("url", url).Msg("loading remote configurations...")

	var (
		remote *sc.Config
		err    error
	)
	for tryCount := 1; tryCount <= maxRetries; tryCount++ {
		remote, err = sc.LoadWithCreds(
			url,
			v.GetString("appName"),
			v.GetString("config.spring.branch"),
			v.GetString("config.spring.user"),
			v.GetString("config.spring.pass"),
			v.GetString("profile"),
		)
		if err == nil {
			break
		}
		log.Error().Err(err).Int("try", tryCount).Msg("failed to load remote configurations... retrying")
		time.Sleep(time.Second * time.Duration(tryCount))
	}
	if err != nil {
		return errors.WithMessage(err, "failed to load remote configurations")
	}

	for k, val := range remote.Values {
		v.Set(k, val)
	}
	return nil
}

func newConfig() *Config {
	return &Config{
		AppName:     StringConfig{Default: AppName, Description: "Name of the application in a human readable format. Example: Go Stock Ledger"},
		AppVersion:  StringConfig{Default: AppVersion, Description: "Semantic version of the application. Example: v1.2.3"},
		Sha1Version: StringConfig{Default: Sha1Version, Description: "Git sha1 hash of the application version."},
		BuildTime:   StringConfig{Default: BuildTime, Description: "When the application was built."},
		Profile:     StringConfig{Default: "local", Description: "Running profile of the application, can assist with sensible defaults or change behavior. Examples: local, dev, prod"},
		Revision:    StringConfig{Default: Revision, Description: "A hard coded revision handy for quickly determining if local changes are running. Examples: 1, Two, 9999"},
		Port:        StringConfig{Default: "8080", Description: "Port that the application will bind to on startup. Examples: 8080, 3000"},
		Config: ConfigSource{
			Print:  BoolConfig{Default: false, Description: "Print configurations on startup."},
			Source: StringConfig{Default: "local", Description: "Where the application should go for configurations. Examples: local, spring"},
			Spring: SpringConfig{
				Url:    StringConfig{Description: "The url of the Spring Cloud Config server."},
				Branch: StringConfig{Description: "The git branch to use to pull configurations from. Examples: main, master, development"},
				User:   StringConfig{Description: "User to use when connecting to the Spring Cloud Config server."},
				Pass:   StringConfig{Description: "Password to use when connecting to the Spring Cloud Config server."},
			},
		},
		Log: LogConfig{
			Level:      StringConfig{Default: "info", Description: "The lowest level that the application should log at. Examples: info, warn, error."},
			Structured: BoolConfig{Default: false, Description: "Whether the application should output structured (json) logging, or human friendly plain text."},
		},
		Db: DbConfig{
			Name:     StringConfig{Default: "stock-ledger-db", Description: "The name of the database to connect to."},
			Host:     StringConfig{Default: "localhost", Description: "Host of the database."},
			Port:     StringConfig{Default: "5432", Description: "Port of the database."},
			Migrate:  BoolConfig{Default: true, Description: "Whether or not database migrations should be executed on startup."},
			Clean:    BoolConfig{Default: false, Description: "WARNING: THIS WILL DELETE ALL DATA FROM THE DB. Used only during migration. If clean is true, all 'down' migrations are executed."},
			InMemory: BoolConfig{Default: false, Description: "Whether or not the application should use an in memory database."},
			User:     StringConfig{Default: "postgres", Description: "User the application will use to connect to the database."},
			Pass:     StringConfig{Default: "postgres", Description: "Password the application will use for connecting to the database."},
			Pool: PoolConfig{
				MinSize: IntConfig{Default: 1, Description: "Minimum number of connections kept open in the pool."},
				MaxSize: IntConfig{Default: 10, Description: "Maximum number of connections the pool will open."},
			},
		},
		RabbitMQ: QueueConfig{
			Host: StringConfig{Default: "localhost", Description: "RabbitMQ's broker host."},
			Port: StringConfig{Default: "5672", Description: "RabbitMQ's broker host port."},
			User: StringConfig{Default: "guest", Description: "User the application will use to connect to RabbitMQ."},
			Pass: StringConfig{Default: "guest", Description: "Password the application will use to connect to RabbitMQ."},
			Mock: BoolConfig{Default: false, Description: "Whether or not the application should mock sending messages to RabbitMQ."},
			Movement: MovementQueueConfig{
				Exchange: StringConfig{Default: "movement.exchange", Description: "RabbitMQ exchange committed movements are published to."},
			},
			Sale: SaleQueueConfig{
				Queue:       StringConfig{Default: "sale.queue", Description: "Queue used for listening to completed sales coming from a point of sale system."},
				DltExchange: StringConfig{Default: "sale.dlt.exchange", Description: "Exchange used for posting sale messages that could not be recorded."},
			},
		},
		Redis: RedisConfig{
			Enabled:  BoolConfig{Default: false, Description: "Whether stock locks are shared through redis. Required when running more than one replica."},
			Addr:     StringConfig{Default: "localhost:6379", Description: "Address of the redis server."},
			Pass:     StringConfig{Description: "Password for the redis server."},
			DB:       IntConfig{Default: 0, Description: "Redis database number."},
			LockTTL:  DurationConfig{Default: 10 * time.Second, Description: "How long a stock lock is held before redis expires it."},
			LockWait: DurationConfig{Default: 2 * time.Second, Description: "How long to wait for a stock lock before reporting a conflict."},
		},
		Transfer: TransferConfig{
			MaxAttempts: IntConfig{Default: 3, Description: "How many times a transfer is attempted when it conflicts with a concurrent write."},
			Backoff:     DurationConfig{Default: 20 * time.Millisecond, Description: "Base delay between transfer attempts, multiplied by the attempt number."},
		},
		Cache: CacheConfig{
			Size: IntConfig{Default: 1024, Description: "Number of products whose balances are cached. Zero disables the cache."},
		},
		Tracing: TracingConfig{
			Endpoint: StringConfig{Description: "OTLP/HTTP endpoint traces are exported to. Tracing is disabled when empty. Example: localhost:4318"},
			Insecure: BoolConfig{Default: true, Description: "Export traces over plain http."},
		},
		Seed: SeedConfig{
			Admin:      BoolConfig{Default: true, Description: "Create the admin user on startup when it does not exist yet."},
			User:       StringConfig{Default: "admin", Description: "Username of the seeded admin user."},
			Pass:       StringConfig{Default: "admin", Description: "Password of the seeded admin user."},
			BusinessID: StringConfig{Default: "default", Description: "Business the seeded admin user belongs to."},
		},
	}
}
