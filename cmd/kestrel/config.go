package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-credit/kestrel/internal/domain"
	"github.com/spf13/viper"
)

// loadConfig builds the runtime configuration: tier defaults first, then an
// optional config file (kestrel.yaml), then KESTREL_* environment variables.
// KESTREL_TIER=pro switches the component defaults to postgres/redis/nats.
func loadConfig() (*domain.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KESTREL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("kestrel")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/kestrel")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := domain.DefaultConfig()
	if strings.EqualFold(v.GetString("tier"), string(domain.TierPro)) {
		cfg = domain.ProConfig()
	}

	setDefaults(v, cfg)

	cfg.Server.Host = v.GetString("server.host")
	cfg.Server.Port = v.GetInt("server.port")
	cfg.Server.ReadTimeout = v.GetInt("server.read_timeout")
	cfg.Server.WriteTimeout = v.GetInt("server.write_timeout")

	cfg.Repository.Driver = v.GetString("repository.driver")
	cfg.Repository.SQLitePath = v.GetString("repository.sqlite_path")
	cfg.Repository.PostgresHost = v.GetString("repository.postgres_host")
	cfg.Repository.PostgresPort = v.GetInt("repository.postgres_port")
	cfg.Repository.PostgresUser = v.GetString("repository.postgres_user")
	cfg.Repository.PostgresPassword = v.GetString("repository.postgres_password")
	cfg.Repository.PostgresDB = v.GetString("repository.postgres_db")
	cfg.Repository.PostgresSSLMode = v.GetString("repository.postgres_sslmode")
	cfg.Repository.MaxOpenConns = v.GetInt("repository.max_open_conns")
	cfg.Repository.MaxIdleConns = v.GetInt("repository.max_idle_conns")
	cfg.Repository.ConnMaxLifetime = time.Duration(v.GetInt("repository.conn_max_lifetime")) * time.Second

	cfg.Cache.Type = v.GetString("cache.type")
	cfg.Cache.RedisAddr = v.GetString("cache.redis_addr")
	cfg.Cache.RedisPassword = v.GetString("cache.redis_password")
	cfg.Cache.RedisDB = v.GetInt("cache.redis_db")
	cfg.Cache.EnableTwoPhase = v.GetBool("cache.two_phase")
	cfg.Cache.LocalMaxSize = v.GetInt("cache.local_max_size")
	cfg.Cache.LocalTTL = time.Duration(v.GetInt("cache.local_ttl")) * time.Second

	cfg.EventBus.Type = v.GetString("eventbus.type")
	cfg.EventBus.ChannelBufferSize = v.GetInt("eventbus.channel_buffer_size")
	cfg.EventBus.NATSUrl = v.GetString("eventbus.nats_url")
	cfg.EventBus.NATSToken = v.GetString("eventbus.nats_token")
	cfg.EventBus.NATSMaxReconnects = v.GetInt("eventbus.nats_max_reconnects")
	cfg.EventBus.NATSReconnectWait = v.GetInt("eventbus.nats_reconnect_wait")

	cfg.Matcher.Workers = v.GetInt("matcher.workers")
	cfg.Matcher.RecomputeTimeout = v.GetInt("matcher.recompute_timeout")

	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Format = v.GetString("logging.format")

	cfg.Tracing.Enabled = v.GetBool("tracing.enabled")
	cfg.Tracing.ServiceName = v.GetString("tracing.service_name")

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *domain.Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)

	v.SetDefault("repository.driver", cfg.Repository.Driver)
	v.SetDefault("repository.sqlite_path", cfg.Repository.SQLitePath)
	v.SetDefault("repository.postgres_host", cfg.Repository.PostgresHost)
	v.SetDefault("repository.postgres_port", cfg.Repository.PostgresPort)
	v.SetDefault("repository.postgres_user", cfg.Repository.PostgresUser)
	v.SetDefault("repository.postgres_password", cfg.Repository.PostgresPassword)
	v.SetDefault("repository.postgres_db", cfg.Repository.PostgresDB)
	v.SetDefault("repository.postgres_sslmode", cfg.Repository.PostgresSSLMode)
	v.SetDefault("repository.max_open_conns", cfg.Repository.MaxOpenConns)
	v.SetDefault("repository.max_idle_conns", cfg.Repository.MaxIdleConns)
	v.SetDefault("repository.conn_max_lifetime", int(cfg.Repository.ConnMaxLifetime/time.Second))

	v.SetDefault("cache.type", cfg.Cache.Type)
	v.SetDefault("cache.redis_addr", cfg.Cache.RedisAddr)
	v.SetDefault("cache.redis_password", cfg.Cache.RedisPassword)
	v.SetDefault("cache.redis_db", cfg.Cache.RedisDB)
	v.SetDefault("cache.two_phase", cfg.Cache.EnableTwoPhase)
	v.SetDefault("cache.local_max_size", cfg.Cache.LocalMaxSize)
	v.SetDefault("cache.local_ttl", int(cfg.Cache.LocalTTL/time.Second))

	v.SetDefault("eventbus.type", cfg.EventBus.Type)
	v.SetDefault("eventbus.channel_buffer_size", cfg.EventBus.ChannelBufferSize)
	v.SetDefault("eventbus.nats_url", cfg.EventBus.NATSUrl)
	v.SetDefault("eventbus.nats_token", cfg.EventBus.NATSToken)
	v.SetDefault("eventbus.nats_max_reconnects", cfg.EventBus.NATSMaxReconnects)
	v.SetDefault("eventbus.nats_reconnect_wait", cfg.EventBus.NATSReconnectWait)

	v.SetDefault("matcher.workers", cfg.Matcher.Workers)
	v.SetDefault("matcher.recompute_timeout", cfg.Matcher.RecomputeTimeout)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)
}
