package config

import (
	"strings"
	"time"

	"github.com/openbank/authcore/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr = ":3000"
)

type MySQLConfig struct {
	Dsn             string `mapstructure:"dsn"`
	ReplicaDsn      string `mapstructure:"replicaDsn"`
	TablePrefix     string `mapstructure:"tablePrefix"`
	MaxIdleConns    int    `mapstructure:"maxIdleConns"`
	MaxOpenConns    int    `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime int    `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime int    `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	Addrs       []string `mapstructure:"addrs"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	DB          int      `mapstructure:"db"`
	PoolSize    int      `mapstructure:"poolSize"`
	ClusterMode bool     `mapstructure:"clusterMode"`
}

type TokenConfig struct {
	SigningKey string        `mapstructure:"signingKey"`
	Issuer     string        `mapstructure:"issuer"`
	Audience   string        `mapstructure:"audience"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type SecurityConfig struct {
	MaxFailedAttempts  int           `mapstructure:"maxFailedAttempts"`
	LockoutDuration    time.Duration `mapstructure:"lockoutDuration"`
	ProgressiveLockout bool          `mapstructure:"progressiveLockout"`
	RiskCeiling        int           `mapstructure:"riskCeiling"`
}

type RateLimitConfig struct {
	Window         time.Duration `mapstructure:"window"`
	DefaultCeiling int           `mapstructure:"defaultCeiling"`
}

type AuditConfig struct {
	QueueSize int `mapstructure:"queueSize"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type AlertsConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

type Config struct {
	Debug        bool            `mapstructure:"debug"`
	ListenAddr   string          `mapstructure:"listenAddr"`
	AllowOrigins []string        `mapstructure:"allowOrigins"`
	MySQL        MySQLConfig     `mapstructure:"mysql"`
	Redis        RedisConfig     `mapstructure:"redis"`
	Token        TokenConfig     `mapstructure:"token"`
	Security     SecurityConfig  `mapstructure:"security"`
	RateLimit    RateLimitConfig `mapstructure:"rateLimit"`
	Audit        AuditConfig     `mapstructure:"audit"`
	Alerts       AlertsConfig    `mapstructure:"alerts"`
}

func (c *Config) Sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Token.Issuer == "" {
		c.Token.Issuer = params.TokenIssuer
	}
	if c.Token.Audience == "" {
		c.Token.Audience = params.TokenAudience
	}
	if c.Token.TTL == 0 {
		c.Token.TTL = params.AccessTokenTTL
	}
	if c.Security.MaxFailedAttempts == 0 {
		c.Security.MaxFailedAttempts = params.MaxFailedAttempts
	}
	if c.Security.LockoutDuration == 0 {
		c.Security.LockoutDuration = params.LockoutDuration
	}
	if c.Security.RiskCeiling == 0 {
		c.Security.RiskCeiling = params.DefaultRiskCeiling
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = params.RateLimitWindow
	}
	if c.RateLimit.DefaultCeiling == 0 {
		c.RateLimit.DefaultCeiling = params.DefaultRateLimitPerMin
	}
	if c.Audit.QueueSize == 0 {
		c.Audit.QueueSize = params.AuditQueueSize
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	viper.SetConfigFile(filename)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
