package config

const (
	// DefaultHost is the loopback interface the worker binds to. The
	// embedding server is never exposed beyond the local machine.
	DefaultHost = "127.0.0.1"

	// DefaultPort is the requested worker port. A hint only when
	// auto_port is enabled.
	DefaultPort uint = 8000

	// DefaultCollection is the collection used when callers omit one.
	DefaultCollection = "default"

	// DefaultAPIListen is the boundary API listen address.
	DefaultAPIListen = ":8600"

	// DefaultAPITarget is where client commands reach a running serve.
	DefaultAPITarget = "http://localhost:8600"

	// DefaultHealthMaxAttempts bounds the startup readiness probe.
	DefaultHealthMaxAttempts uint = 30

	// DefaultHealthIntervalMs is the delay between probe attempts.
	DefaultHealthIntervalMs uint = 500

	// DefaultGracefulTimeoutMs is the window between the graceful signal
	// and the forceful kill.
	DefaultGracefulTimeoutMs uint = 5000

	// DefaultRequestTimeoutMs bounds individual vector-store requests.
	// Embedding generation on a cold model can take tens of seconds.
	DefaultRequestTimeoutMs uint = 60000
)

// NewDefaultConfig returns a fully-populated Config with sane defaults.
// Paths (script, db, bundled runtime) stay empty here; they are resolved
// against the dot directory at load time by callers that need them.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Worker: WorkerConfig{
			Host:     DefaultHost,
			Port:     DefaultPort,
			AutoPort: true,
		},
		Health: HealthConfig{
			MaxAttempts: DefaultHealthMaxAttempts,
			IntervalMs:  DefaultHealthIntervalMs,
		},
		Supervisor: SupervisorConfig{
			GracefulTimeoutMs: DefaultGracefulTimeoutMs,
		},
		Store: StoreConfig{
			DefaultCollection: DefaultCollection,
			RequestTimeoutMs:  DefaultRequestTimeoutMs,
		},
		API: APIConfig{
			Listen: DefaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: DefaultAPITarget,
		},
	}
}
