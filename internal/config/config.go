package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/retry"
)

type Config struct {
	Env            string `yaml:"env" env:"ENV"`
	HTTP           HTTPConfig
	Database       PostgresConfig
	Redis          RedisConfig
	RabbitMQ       RabbitMQConfig
	Quota          QuotaConfig
	Dispatcher     DispatcherConfig
	Adapters       AdaptersConfig
	RelayAllowList []string
	PostgresRetry  RetryConfig
	RabbitMQRetry  RetryConfig
}

func NewConfig(envFilePath string, configFilePath string) (*Config, error) {
	myConfig := &Config{}

	cfg := config.New()

	if envFilePath != "" {
		if err := cfg.LoadEnvFiles(envFilePath); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}
	cfg.EnableEnv("")

	if configFilePath != "" {
		if err := cfg.LoadConfigFiles(configFilePath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	myConfig.Env = cfg.GetString("ENV")

	// HTTP
	myConfig.HTTP.Addr = cfg.GetString("PUBLISH_DISPATCHER_HTTP_ADDR")

	// Postgres
	myConfig.Database.MasterDSN = cfg.GetString("PUBLISH_DISPATCHER_POSTGRES_MASTER_DSN")
	myConfig.Database.SlaveDSNs = cfg.GetStringSlice("PUBLISH_DISPATCHER_POSTGRES_SLAVE_DSNS")
	myConfig.Database.MaxOpenConnections = cfg.GetInt("PUBLISH_DISPATCHER_POSTGRES_MAX_OPEN_CONNECTIONS")
	myConfig.Database.MaxIdleConnections = cfg.GetInt("PUBLISH_DISPATCHER_POSTGRES_MAX_IDLE_CONNECTIONS")
	myConfig.Database.ConnectionMaxLifetimeSeconds = cfg.GetInt("PUBLISH_DISPATCHER_POSTGRES_CONNECTION_MAX_LIFETIME_SECONDS")

	// Redis
	myConfig.Redis.Addr = cfg.GetString("PUBLISH_DISPATCHER_REDIS_ADDR")
	myConfig.Redis.Password = cfg.GetString("PUBLISH_DISPATCHER_REDIS_PASSWORD")
	myConfig.Redis.DB = cfg.GetInt("PUBLISH_DISPATCHER_REDIS_DB")

	// RabbitMQ
	myConfig.RabbitMQ.User = cfg.GetString("PUBLISH_DISPATCHER_RABBITMQ_USER")
	myConfig.RabbitMQ.Password = cfg.GetString("PUBLISH_DISPATCHER_RABBITMQ_PASSWORD")
	myConfig.RabbitMQ.Host = cfg.GetString("PUBLISH_DISPATCHER_RABBITMQ_HOST")
	myConfig.RabbitMQ.Port = cfg.GetInt("PUBLISH_DISPATCHER_RABBITMQ_PORT")
	myConfig.RabbitMQ.VHost = cfg.GetString("PUBLISH_DISPATCHER_RABBITMQ_VHOST")
	myConfig.RabbitMQ.Exchange = cfg.GetString("PUBLISH_DISPATCHER_RABBITMQ_EXCHANGE")
	myConfig.RabbitMQ.Queue = cfg.GetString("PUBLISH_DISPATCHER_RABBITMQ_QUEUE")
	myConfig.RabbitMQ.WaitQueue = cfg.GetString("PUBLISH_DISPATCHER_RABBITMQ_WAIT_QUEUE")
	myConfig.RabbitMQ.Prefetch = cfg.GetInt("PUBLISH_DISPATCHER_RABBITMQ_PREFETCH")

	// Quota
	myConfig.Quota.DefaultDailyCap = int64(cfg.GetInt("PUBLISH_DISPATCHER_QUOTA_DEFAULT_DAILY_CAP"))
	tierCaps, err := parseTierCaps(cfg.GetString("PUBLISH_DISPATCHER_QUOTA_TIER_CAPS"))
	if err != nil {
		return nil, err
	}
	myConfig.Quota.TierCaps = tierCaps

	// Dispatcher
	myConfig.Dispatcher.MaxAttempts = cfg.GetInt("PUBLISH_DISPATCHER_MAX_ATTEMPTS")
	myConfig.Dispatcher.BackoffBaseMs = cfg.GetInt("PUBLISH_DISPATCHER_BACKOFF_BASE_MS")
	myConfig.Dispatcher.BackoffMaxMs = cfg.GetInt("PUBLISH_DISPATCHER_BACKOFF_MAX_MS")
	myConfig.Dispatcher.AdapterTimeoutSeconds = cfg.GetInt("PUBLISH_DISPATCHER_ADAPTER_TIMEOUT_SECONDS")
	myConfig.Dispatcher.ResultTTLHours = cfg.GetInt("PUBLISH_DISPATCHER_RESULT_TTL_HOURS")
	myConfig.Dispatcher.ReservationTTLSeconds = cfg.GetInt("PUBLISH_DISPATCHER_RESERVATION_TTL_SECONDS")
	myConfig.Dispatcher.MetricsAddr = cfg.GetString("PUBLISH_DISPATCHER_METRICS_ADDR")

	// Adapters
	myConfig.Adapters.Telegram.APIBaseURL = cfg.GetString("PUBLISH_DISPATCHER_TELEGRAM_API_BASE_URL")
	myConfig.Adapters.Telegram.BotToken = cfg.GetString("PUBLISH_DISPATCHER_TELEGRAM_BOT_TOKEN")
	myConfig.Adapters.VK.APIBaseURL = cfg.GetString("PUBLISH_DISPATCHER_VK_API_BASE_URL")
	myConfig.Adapters.VK.AccessToken = cfg.GetString("PUBLISH_DISPATCHER_VK_ACCESS_TOKEN")
	myConfig.Adapters.VK.APIVersion = cfg.GetString("PUBLISH_DISPATCHER_VK_API_VERSION")
	myConfig.Adapters.Video.APIBaseURL = cfg.GetString("PUBLISH_DISPATCHER_VIDEO_API_BASE_URL")
	myConfig.Adapters.Video.ShardTokens = cfg.GetStringSlice("PUBLISH_DISPATCHER_VIDEO_SHARD_TOKENS")
	myConfig.Adapters.RelayRatePerSec = cfg.GetFloat64("PUBLISH_DISPATCHER_RELAY_RATE_PER_SEC")
	myConfig.Adapters.RelayBurst = cfg.GetInt("PUBLISH_DISPATCHER_RELAY_BURST")

	// Allow-list
	myConfig.RelayAllowList = cfg.GetStringSlice("PUBLISH_DISPATCHER_RELAY_ALLOW_LIST")

	// Retry
	myConfig.PostgresRetry.Attempts = cfg.GetInt("PUBLISH_DISPATCHER_RETRY_POSTGRES_ATTEMPTS")
	myConfig.PostgresRetry.DelayMilliseconds = cfg.GetInt("PUBLISH_DISPATCHER_RETRY_POSTGRES_DELAY_MS")
	myConfig.PostgresRetry.Backoff = cfg.GetFloat64("PUBLISH_DISPATCHER_RETRY_POSTGRES_BACKOFF")

	myConfig.RabbitMQRetry.Attempts = cfg.GetInt("PUBLISH_DISPATCHER_RETRY_RABBITMQ_ATTEMPTS")
	myConfig.RabbitMQRetry.DelayMilliseconds = cfg.GetInt("PUBLISH_DISPATCHER_RETRY_RABBITMQ_DELAY_MS")
	myConfig.RabbitMQRetry.Backoff = cfg.GetFloat64("PUBLISH_DISPATCHER_RETRY_RABBITMQ_BACKOFF")

	return myConfig, nil
}

// parseTierCaps reads "free:20,pro:200" into a map.
func parseTierCaps(raw string) (map[string]int64, error) {
	caps := map[string]int64{}
	if strings.TrimSpace(raw) == "" {
		return caps, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid tier cap entry %q", pair)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tier cap value in %q: %w", pair, err)
		}
		caps[strings.ToLower(strings.TrimSpace(parts[0]))] = n
	}
	return caps, nil
}

func MakeStrategy(c RetryConfig) retry.Strategy {
	return retry.Strategy{
		Attempts: c.Attempts,
		Delay:    time.Duration(c.DelayMilliseconds) * time.Millisecond,
		Backoff:  c.Backoff,
	}
}
