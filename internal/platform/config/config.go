package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DriverPostgres は PostgreSQL (pgx) を利用するストアです。
	DriverPostgres = "postgres"
	// DriverSQLite は SQLite (GORM) を利用するローカル向けストアです。
	DriverSQLite = "sqlite"

	defaultShutdownTimeout = 10 * time.Second
	defaultCacheTTL        = 5 * time.Minute
	defaultSQLitePath      = "user_api.db"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	GRPCHealth GRPCHealthConfig `yaml:"grpc_health"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Cache      CacheConfig      `yaml:"cache"`
	Log        LogConfig        `yaml:"log"`
}

// HTTPConfig は HTTP サーバーに関する設定です。
type HTTPConfig struct {
	ListenAddr         string        `yaml:"listen_addr"`
	ShutdownTimeout    time.Duration `yaml:"-"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout"`
}

// GRPCHealthConfig は gRPC ヘルスチェックサーバーの設定です。ListenAddr が空の場合は起動しません。
type GRPCHealthConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig はストア接続に関する設定です。
type DatabaseConfig struct {
	Driver             string        `yaml:"driver"`
	SQLitePath         string        `yaml:"sqlite_path"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// RedisConfig は読み取りキャッシュ用 Redis の設定です。Addr が空の場合はキャッシュを無効化します。
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled は Redis が設定されているかを返します。
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// CacheConfig はキャッシュの TTL 設定です。
type CacheConfig struct {
	TTL    time.Duration `yaml:"-"`
	TTLRaw string        `yaml:"ttl"`
}

// LogConfig はロガーの設定です。
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// envOverrides は環境変数から上書きする値です。空文字・0 は未指定として扱います。
type envOverrides struct {
	HTTPListenAddr       string `env:"HTTP_LISTEN_ADDR"`
	GRPCHealthListenAddr string `env:"GRPC_HEALTH_LISTEN_ADDR"`
	DBDriver             string `env:"DB_DRIVER"`
	DBSQLitePath         string `env:"DB_SQLITE_PATH"`
	DBHost               string `env:"DB_HOST"`
	DBPort               int    `env:"DB_PORT"`
	DBUser               string `env:"DB_USER"`
	DBPassword           string `env:"DB_PASSWORD"`
	DBName               string `env:"DB_NAME"`
	DBSSLMode            string `env:"DB_SSL_MODE"`
	RedisAddr            string `env:"REDIS_ADDR"`
	RedisPassword        string `env:"REDIS_PASSWORD"`
	RedisDB              string `env:"REDIS_DB"`
	CacheTTL             string `env:"CACHE_TTL"`
	LogLevel             string `env:"LOG_LEVEL"`
	LogFormat            string `env:"LOG_FORMAT"`
}

// Load は指定されたパスから設定ファイルを読み込み、環境変数で上書きします。
func Load(path string) (*Config, error) {
	return LoadWithLookuper(context.Background(), path, envconfig.OsLookuper())
}

// LoadWithLookuper は環境変数の参照先を指定して設定を読み込みます。
func LoadWithLookuper(ctx context.Context, path string, lookuper envconfig.Lookuper) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	var env envOverrides
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: process env: %w", err)
	}

	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv(env envOverrides) error {
	setString(&c.HTTP.ListenAddr, env.HTTPListenAddr)
	setString(&c.GRPCHealth.ListenAddr, env.GRPCHealthListenAddr)
	setString(&c.Database.Driver, env.DBDriver)
	setString(&c.Database.SQLitePath, env.DBSQLitePath)
	setString(&c.Database.Host, env.DBHost)
	setString(&c.Database.User, env.DBUser)
	setString(&c.Database.Password, env.DBPassword)
	setString(&c.Database.Name, env.DBName)
	setString(&c.Database.SSLMode, env.DBSSLMode)
	setString(&c.Redis.Addr, env.RedisAddr)
	setString(&c.Redis.Password, env.RedisPassword)
	setString(&c.Cache.TTLRaw, env.CacheTTL)
	setString(&c.Log.Level, env.LogLevel)
	setString(&c.Log.Format, env.LogFormat)

	if env.DBPort != 0 {
		c.Database.Port = env.DBPort
	}

	if env.RedisDB != "" {
		db, err := strconv.Atoi(env.RedisDB)
		if err != nil {
			return fmt.Errorf("config: REDIS_DB: %w", err)
		}
		c.Redis.DB = db
	}

	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func (c *Config) validateAndNormalize() error {
	if c.HTTP.ListenAddr == "" {
		return fmt.Errorf("config: http.listen_addr must be set")
	}

	shutdown, err := parseDurationAllowEmpty(c.HTTP.ShutdownTimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: http.shutdown_timeout: %w", err)
	}
	if shutdown == 0 {
		shutdown = defaultShutdownTimeout
	}
	c.HTTP.ShutdownTimeout = shutdown

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}

	ttl, err := parseDurationAllowEmpty(c.Cache.TTLRaw)
	if err != nil {
		return fmt.Errorf("config: cache.ttl: %w", err)
	}
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	c.Cache.TTL = ttl

	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	switch c.Log.Format {
	case "":
		c.Log.Format = "json"
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format must be json or console, got %q", c.Log.Format)
	}

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Driver == "" {
		d.Driver = DriverPostgres
	}

	switch d.Driver {
	case DriverSQLite:
		if d.SQLitePath == "" {
			d.SQLitePath = defaultSQLitePath
		}
		return nil
	case DriverPostgres:
	default:
		return fmt.Errorf("config: database.driver must be %s or %s, got %q", DriverPostgres, DriverSQLite, d.Driver)
	}

	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx / golang-migrate 用の接続文字列を返します。認証情報は URL エスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
