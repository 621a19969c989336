// Package config provides the structures and loader for the service
// configuration. Values come from a YAML file named by CONFIG_PATH or, when
// it is unset, from environment variables (a local .env file is honoured).
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config groups every setting of the API and the notifier.
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"DATABASE_URL"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	FrontendURL             string `yaml:"frontend_url" env:"FRONTEND_URL" env-default:"http://localhost:3000"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	SMTP                    `yaml:"smtp"`
	Chatbot                 `yaml:"chatbot"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	RateLimit               `yaml:"rate_limit"`
}

// HTTPServer configures the HTTP listener.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":5000"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env:"HTTP_TIMEOUT" env-default:"30s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// JWTToken holds the signing secret and the lifetime of every token purpose.
// ProtectedTTL (1h) differs from SessionTTL (24h) although both guard the
// same routes; the two values are kept apart on purpose until the intended
// lifetime is settled.
type JWTToken struct {
	JWTSecretKey    string        `yaml:"jwt_secret_key" env:"JWT_SECRET"`
	SessionTTL      time.Duration `yaml:"session_ttl" env:"JWT_SESSION_TTL" env-default:"24h"`
	VerificationTTL time.Duration `yaml:"verification_ttl" env:"JWT_VERIFICATION_TTL" env-default:"24h"`
	ResetTTL        time.Duration `yaml:"reset_ttl" env:"JWT_RESET_TTL" env-default:"15m"`
	ProtectedTTL    time.Duration `yaml:"protected_ttl" env:"JWT_PROTECTED_TTL" env-default:"1h"`
}

// SMTP configures the outbound mail relay.
type SMTP struct {
	SMTPHost     string `yaml:"host" env:"SMTP_HOST" env-default:"smtp.gmail.com"`
	SMTPPort     string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser     string `yaml:"user" env:"EMAIL_USER"`
	SMTPPass     string `yaml:"pass" env:"EMAIL_PASS"`
	SMTPFromName string `yaml:"from_name" env:"EMAIL_FROM_NAME" env-default:"Helpdesk Admin"`
}

// Chatbot configures the external inference service.
type Chatbot struct {
	ChatbotURL     string        `yaml:"url" env:"CHATBOT_URL" env-default:"http://localhost:8000"`
	ChatbotTimeout time.Duration `yaml:"timeout" env:"CHATBOT_TIMEOUT" env-default:"0s"`
}

// RedisConnection configures the client used for the reset-token denylist.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	MaxRetries   int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env:"REDIS_TIMEOUT" env-default:"3s"`
}

// RabbitMQ configures the broker that carries helpdesk action events. An
// empty URL disables publishing.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env:"RABBITMQ_MAX_RETRIES" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env:"RABBITMQ_RETRY_DELAY" env-default:"2s"`
}

// RateLimit configures the limiter in front of the /auth routes.
// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is honoured;
// with none, clients are keyed by their socket address.
type RateLimit struct {
	RPS            float64  `yaml:"rps" env:"AUTH_RATE_RPS" env-default:"5"`
	Burst          int      `yaml:"burst" env:"AUTH_RATE_BURST" env-default:"10"`
	TrustedProxies []string `yaml:"trusted_proxies" env:"AUTH_TRUSTED_PROXIES" env-separator:","`
}

// ErrMissingSecret is returned by Load when no JWT secret is configured.
var ErrMissingSecret = errors.New("jwt secret is not set")

// Load reads the configuration. CONFIG_PATH, when set, must point to an
// existing YAML file; otherwise the environment is used.
func Load() (*Config, error) {
	const op = "config.Load"

	// a missing .env is fine, the variables may come from the process
	_ = godotenv.Load()

	var cfg Config
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingSecret)
	}
	return &cfg, nil
}

// MustLoad is Load that terminates the process on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"MigrationsPath: %s\n"+
			"FrontendURL: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWTToken:\n"+
			"  SessionTTL: %s\n"+
			"  VerificationTTL: %s\n"+
			"  ResetTTL: %s\n"+
			"SMTP:\n"+
			"  Host: %s:%s\n"+
			"  User: %s\n"+
			"Chatbot:\n"+
			"  URL: %s\n"+
			"Redis:\n"+
			"  Addr: %s\n"+
			"RabbitMQ enabled: %t\n",
		c.Env,
		c.MigrationsPath,
		c.FrontendURL,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.SessionTTL,
		c.VerificationTTL,
		c.ResetTTL,
		c.SMTPHost, c.SMTPPort,
		c.SMTPUser,
		c.ChatbotURL,
		c.AddressRedis,
		c.RabbitMQURL != "",
	)
}
