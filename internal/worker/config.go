package worker

import "time"

type Config struct {
	DBDSN           string        `envconfig:"IRP_DB_DSN" required:"true"`
	MetricsAddr     string        `envconfig:"IRP_METRICS_ADDR" default:"0.0.0.0:9091"`
	LogLevel        string        `envconfig:"IRP_LOG_LEVEL" default:"info"`
	CredentialsKey  string        `envconfig:"IRP_CREDENTIALS_KEY" required:"true"`
	Concurrency     int           `envconfig:"IRP_WORKER_CONCURRENCY" default:"4"`
	PollInterval    time.Duration `envconfig:"IRP_POLL_INTERVAL" default:"1s"`
	IdleBackoff     time.Duration `envconfig:"IRP_IDLE_BACKOFF" default:"5s"`
	ShutdownTimeout time.Duration `envconfig:"IRP_SHUTDOWN_TIMEOUT" default:"120s"`

	// Provisioning surface.
	DryRun         bool          `envconfig:"IRP_DRY_RUN" default:"false"`
	ToolBinary     string        `envconfig:"IRP_TOOL_BINARY" default:"terraform"`
	StepTimeout    time.Duration `envconfig:"IRP_STEP_TIMEOUT" default:"600s"`
	WorkspacesRoot string        `envconfig:"IRP_WORKSPACES_ROOT" default:"/var/lib/irp/workspaces"`
	ModulesRoot    string        `envconfig:"IRP_MODULES_ROOT" default:"/var/lib/irp/modules"`
	MaxAttempts    int           `envconfig:"IRP_MAX_ATTEMPTS" default:"3"`
	RetryBackoff   time.Duration `envconfig:"IRP_RETRY_BACKOFF" default:"60s"`

	// StaleClaimAfter must exceed the worst-case attempt wall clock
	// (four tool steps at StepTimeout each), or the janitor could
	// reclaim a request whose attempt is still running. 0 disables
	// reclaiming.
	StaleClaimAfter time.Duration `envconfig:"IRP_STALE_CLAIM_AFTER" default:"2h"`
	JanitorInterval time.Duration `envconfig:"IRP_JANITOR_INTERVAL" default:"1m"`
}
