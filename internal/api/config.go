package api

import "time"

type Config struct {
	HTTPAddr        string        `envconfig:"IRP_HTTP_ADDR" default:"0.0.0.0:8080"`
	DBDSN           string        `envconfig:"IRP_DB_DSN" required:"true"`
	MetricsAddr     string        `envconfig:"IRP_METRICS_ADDR" default:"0.0.0.0:9090"`
	LogLevel        string        `envconfig:"IRP_LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"IRP_SHUTDOWN_TIMEOUT" default:"30s"`
	JWTSecret       string        `envconfig:"IRP_JWT_SECRET" required:"true"`
	TokenTTL        time.Duration `envconfig:"IRP_TOKEN_TTL" default:"24h"`
	CredentialsKey  string        `envconfig:"IRP_CREDENTIALS_KEY" required:"true"`
	MaxAttempts     int           `envconfig:"IRP_MAX_ATTEMPTS" default:"3"`
}
