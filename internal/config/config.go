package config

import "time"

type Config struct {
	Service     *ServiceConfig
	Redis       *RedisConfig
	Postgres    *PostgresConfig
	Realtime    *RealtimeConfig
	Presence    *PresenceConfig
	Worker      *WorkerConfig
	Logger      *LoggerConfig
	Tracer      *TracerConfig
	SecretToken string
}

type ServiceConfig struct {
	Name           string
	Env            string
	Addr           string
	AllowedOrigins []string
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// RealtimeConfig tunes the room log and its publishers/subscribers.
type RealtimeConfig struct {
	StreamMaxLen    int64
	ReadBlock       time.Duration
	ResumeBackoff   time.Duration
	PublishTimeout  time.Duration
	MaxMessageBytes int
	HistoryLimit    int
}

type PresenceConfig struct {
	TTL                 time.Duration
	HeartbeatInterval   time.Duration
	SweepInterval       time.Duration
	ProbeInterval       time.Duration
	ProbeTimeout        time.Duration
	SessionSyncInterval time.Duration
}

type WorkerConfig struct {
	ArchiveGroup string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TracerConfig struct {
	Address string
	Enabled bool
}
