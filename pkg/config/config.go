package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// S3 configures the durable certificate artifact bucket. When Bucket is
// empty the service runs in degraded mode and keeps artifacts in memory.
type S3 struct {
	Bucket        string `env:"BUCKET"`
	Region        string `env:"REGION" envDefault:"us-east-1"`
	Endpoint      string `env:"ENDPOINT"`
	AccessKey     string `env:"ACCESS_KEY"`
	SecretKey     string `env:"SECRET_KEY"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
}

// SMTP configures the outbound mail relay. When Host is empty the service
// falls back to a log-only sender (development mode).
type SMTP struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT" envDefault:"587"`
	From     string `env:"FROM" envDefault:"noreply@example.com"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
}

// AI configures the external name-validation endpoint.
type AI struct {
	URL    string `env:"URL"`
	APIKey string `env:"API_KEY"`
}

type APIConfig struct {
	Port        string        `env:"PORT" envDefault:"8080"`
	DBDSN       string        `env:"DB_DSN,required"`
	RMQURL      string        `env:"RMQ_URL"`
	Queue       string        `env:"QUEUE" envDefault:"send_jobs"`
	Domain      string        `env:"APP_DOMAIN" envDefault:"localhost:8080"`
	Issuer      string        `env:"CERT_ISSUER" envDefault:"Pramaan"`
	FontPath    string        `env:"CERT_FONT_PATH"`
	CallTimeout time.Duration `env:"CALL_TIMEOUT" envDefault:"10s"`

	S3   S3   `envPrefix:"S3_"`
	SMTP SMTP `envPrefix:"SMTP_"`
	AI   AI   `envPrefix:"AI_"`
}

type WorkerConfig struct {
	DBDSN       string        `env:"DB_DSN,required"`
	RMQURL      string        `env:"RMQ_URL,required"`
	Queue       string        `env:"QUEUE" envDefault:"send_jobs"`
	Domain      string        `env:"APP_DOMAIN" envDefault:"localhost:8080"`
	Issuer      string        `env:"CERT_ISSUER" envDefault:"Pramaan"`
	FontPath    string        `env:"CERT_FONT_PATH"`
	CallTimeout time.Duration `env:"CALL_TIMEOUT" envDefault:"10s"`

	S3   S3   `envPrefix:"S3_"`
	SMTP SMTP `envPrefix:"SMTP_"`
}

// LoadAPI reads the API configuration from the environment. A .env file in
// the working directory is loaded first when present.
func LoadAPI() (APIConfig, error) {
	_ = godotenv.Load()
	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWorker reads the sender-worker configuration from the environment.
func LoadWorker() (WorkerConfig, error) {
	_ = godotenv.Load()
	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
