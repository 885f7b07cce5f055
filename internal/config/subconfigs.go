package config

type HTTPConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

type PostgresConfig struct {
	MasterDSN                    string   `env:"MASTER_DSN"`
	SlaveDSNs                    []string `env:"SLAVE_DSNS" envSeparator:","`
	MaxOpenConnections           int      `env:"MAX_OPEN_CONNECTIONS" envDefault:"5"`
	MaxIdleConnections           int      `env:"MAX_IDLE_CONNECTIONS" envDefault:"5"`
	ConnectionMaxLifetimeSeconds int      `env:"CONNECTION_MAX_LIFETIME_SECONDS" envDefault:"0"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

type RabbitMQConfig struct {
	User      string `yaml:"user" env:"USER"`
	Password  string `yaml:"password" env:"PASSWORD"`
	Host      string `yaml:"host" env:"HOST"`
	Port      int    `yaml:"port" env:"PORT"`
	VHost     string `yaml:"vhost" env:"VHOST"`
	Exchange  string `yaml:"exchange" env:"EXCHANGE"`
	Queue     string `yaml:"queue" env:"QUEUE"`
	WaitQueue string `yaml:"wait_queue" env:"WAIT_QUEUE"`
	Prefetch  int    `yaml:"prefetch" env:"PREFETCH"`
}

type RetryConfig struct {
	Attempts          int     `yaml:"attempts" env:"ATTEMPTS"`
	DelayMilliseconds int     `yaml:"delay_milliseconds" env:"DELAY_MS"`
	Backoff           float64 `yaml:"backoff" env:"BACKOFF"`
}

// QuotaConfig sets the daily managed-delivery caps. TierCaps overrides the
// default per plan tier ("free:20,pro:200").
type QuotaConfig struct {
	DefaultDailyCap int64            `yaml:"default_daily_cap" env:"DEFAULT_DAILY_CAP"`
	TierCaps        map[string]int64 `yaml:"tier_caps"`
}

// DispatcherConfig drives the per-channel retry budget and backoff curve.
type DispatcherConfig struct {
	MaxAttempts           int    `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	BackoffBaseMs         int    `yaml:"backoff_base_ms" env:"BACKOFF_BASE_MS"`
	BackoffMaxMs          int    `yaml:"backoff_max_ms" env:"BACKOFF_MAX_MS"`
	AdapterTimeoutSeconds int    `yaml:"adapter_timeout_seconds" env:"ADAPTER_TIMEOUT_SECONDS"`
	ResultTTLHours        int    `yaml:"result_ttl_hours" env:"RESULT_TTL_HOURS"`
	ReservationTTLSeconds int    `yaml:"reservation_ttl_seconds" env:"RESERVATION_TTL_SECONDS"`
	MetricsAddr           string `yaml:"metrics_addr" env:"METRICS_ADDR"`
}

type TelegramConfig struct {
	APIBaseURL string `yaml:"api_base_url" env:"API_BASE_URL"`
	BotToken   string `yaml:"bot_token" env:"BOT_TOKEN"`
}

type VKConfig struct {
	APIBaseURL  string `yaml:"api_base_url" env:"API_BASE_URL"`
	AccessToken string `yaml:"access_token" env:"ACCESS_TOKEN"`
	APIVersion  string `yaml:"api_version" env:"API_VERSION"`
}

// VideoConfig holds the sharded credential sets for the video-hosting
// channel; a tenant's shard_ref selects one of them.
type VideoConfig struct {
	APIBaseURL  string   `yaml:"api_base_url" env:"API_BASE_URL"`
	ShardTokens []string `yaml:"shard_tokens" env:"SHARD_TOKENS" envSeparator:","`
}

type AdaptersConfig struct {
	Telegram        TelegramConfig
	VK              VKConfig
	Video           VideoConfig
	RelayRatePerSec float64 `yaml:"relay_rate_per_sec" env:"RELAY_RATE_PER_SEC"`
	RelayBurst      int     `yaml:"relay_burst" env:"RELAY_BURST"`
}
