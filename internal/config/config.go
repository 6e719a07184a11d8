package config

import (
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string  `yaml:"env" env:"ENV" env-default:"local" env-description:"Environment" env-choices:"local,dev,prod"`
	ApiPort int     `yaml:"api_port" env:"API_PORT" env-default:"8080"`
	ApiHost string  `yaml:"api_host" env:"API_HOST" env-default:"localhost"`
	HTTP    HTTP    `yaml:"http" env-prefix:"HTTP_"`
	Storage Storage `yaml:"storage" env-prefix:"STORAGE_"`
	Auth    Auth    `yaml:"auth" env-prefix:"AUTH_"`
}

type HTTP struct {
	ReadTimeout        time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" env-default:"5s"`
	WriteTimeout       time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout        time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"5s"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
}

type Storage struct {
	Driver      string   `yaml:"driver" env:"DRIVER" env-default:"postgres" env-choices:"postgres,pgx,sqlite"`
	SQLitePath  string   `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"budget.db"`
	AutoMigrate bool     `yaml:"auto_migrate" env:"AUTO_MIGRATE" env-default:"false"`
	Postgres    Postgres `yaml:"postgres" env-prefix:"POSTGRES_"`
}

type Postgres struct {
	Host    string `yaml:"host" env:"HOST" env-default:"localhost"`
	Port    string `yaml:"port" env:"PORT" env-default:"5432"`
	User    string `yaml:"user" env:"USER" env-default:"postgres"`
	Pass    string `yaml:"pass" env:"PASS" env-default:"postgres"`
	Db      string `yaml:"db" env:"DB" env-default:"budget"`
	SSLMode string `yaml:"sslmode" env:"SSLMODE" env-default:"disable"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"30m"`
}

// Addr is the listen address of the API server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.ApiHost, strconv.Itoa(c.ApiPort))
}

// DSN builds the data source name for the configured driver. Postgres
// drivers get a URL, which golang-migrate accepts as well.
func (s Storage) DSN() string {
	if s.Driver == "sqlite" {
		return s.SQLitePath
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.Postgres.User, s.Postgres.Pass),
		Host:     net.JoinHostPort(s.Postgres.Host, s.Postgres.Port),
		Path:     "/" + s.Postgres.Db,
		RawQuery: url.Values{"sslmode": []string{s.Postgres.SSLMode}}.Encode(),
	}
	return u.String()
}

// Load reads the config file at path, with env overrides. An empty path
// reads env only.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from env: %w", err)
		}
		return &cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load(fetchConfigPath())
	if err != nil {
		panic(err)
	}

	return cfg
}

// fetchConfigPath returns the -config flag, falling back to CONFIG_PATH.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
