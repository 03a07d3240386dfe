package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/logging"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment      string                 `mapstructure:"environment"`
	Server           ServerConfig           `mapstructure:"server"`
	Redis            RedisConfig            `mapstructure:"redis"`
	Kafka            KafkaConfig            `mapstructure:"kafka"`
	JWT              JWTConfig              `mapstructure:"jwt"`
	Logging          logging.Config         `mapstructure:"logging"`
	ExternalServices ExternalServicesConfig `mapstructure:"external_services"`
	Twitch           TwitchConfig           `mapstructure:"twitch"`
	Wheel            WheelConfig            `mapstructure:"wheel"`
	Chain            ChainConfig            `mapstructure:"chain"`
	Export           ExportConfig           `mapstructure:"export"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	EnableCORS     bool          `mapstructure:"enable_cors"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	// SnapshotKey is where the engine snapshot is stored.
	SnapshotKey string `mapstructure:"snapshot_key"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers []string          `mapstructure:"brokers"`
	Topics  map[string]string `mapstructure:"topics"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// ExternalServicesConfig holds external service configurations
type ExternalServicesConfig struct {
	RedemptionAPI  ServiceConfig `mapstructure:"redemption_api"`
	WalletRegistry ServiceConfig `mapstructure:"wallet_registry"`
}

// ServiceConfig holds external service configuration
type ServiceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

// TwitchConfig describes the channel whose redemptions feed the wheel.
type TwitchConfig struct {
	ClientID     string         `mapstructure:"client_id"`
	AccessToken  string         `mapstructure:"access_token"`
	ChannelLogin string         `mapstructure:"channel_login"`
	Reward       RewardConfig   `mapstructure:"reward"`
	Messages     MessagesConfig `mapstructure:"messages"`
}

// RewardConfig holds the fixed parameters used when the reward has to be created.
type RewardConfig struct {
	Title               string `mapstructure:"title"`
	Cost                int    `mapstructure:"cost"`
	Prompt              string `mapstructure:"prompt"`
	MaxPerUserPerStream int    `mapstructure:"max_per_user_per_stream"`
}

// MessagesConfig holds chat message templates. %s placeholders are filled in order.
type MessagesConfig struct {
	// Refund takes the display name.
	Refund string `mapstructure:"refund"`
	// Rejected takes the display name and the reason.
	Rejected string `mapstructure:"rejected"`
	// Canceled takes the display name.
	Canceled string `mapstructure:"canceled"`
	// Won takes the display name and the prize.
	Won string `mapstructure:"won"`
}

// SegmentConfig is one wheel segment as written in YAML.
type SegmentConfig struct {
	Label  string `mapstructure:"label"`
	Weight string `mapstructure:"weight"`
}

// WheelConfig holds spin engine timing and the initial segment set.
type WheelConfig struct {
	Segments          []SegmentConfig `mapstructure:"segments"`
	SettleDelay       time.Duration   `mapstructure:"settle_delay"`
	AnimationDuration time.Duration   `mapstructure:"animation_duration"`
	PollInterval      time.Duration   `mapstructure:"poll_interval"`
	MinTurns          int             `mapstructure:"min_turns"`
	AutoSpin          bool            `mapstructure:"auto_spin"`
	AutoIngest        bool            `mapstructure:"auto_ingest"`
}

// NetworkConfig is the definition handed to the wallet when the chain is unknown to it.
type NetworkConfig struct {
	Name           string   `mapstructure:"name"`
	RPCURLs        []string `mapstructure:"rpc_urls"`
	CurrencySymbol string   `mapstructure:"currency_symbol"`
	CurrencyName   string   `mapstructure:"currency_name"`
	Decimals       uint8    `mapstructure:"decimals"`
	ExplorerURLs   []string `mapstructure:"explorer_urls"`
}

// ChainConfig holds settlement parameters.
type ChainConfig struct {
	ChainID       uint64        `mapstructure:"chain_id"`
	Network       NetworkConfig `mapstructure:"network"`
	TokenAddress  string        `mapstructure:"token_address"`
	PayoutAddress string        `mapstructure:"payout_address"`
	// SignerKey is a hex private key; empty disables settlement.
	SignerKey           string        `mapstructure:"signer_key"`
	Confirmations       uint64        `mapstructure:"confirmations"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
	ReceiptTimeout      time.Duration `mapstructure:"receipt_timeout"`
}

// ExportConfig controls the payout export file.
type ExportConfig struct {
	TokenType  string `mapstructure:"token_type"`
	FilePrefix string `mapstructure:"file_prefix"`
}

// Load loads configuration from YAML file using Viper
func Load(filename string) (*Config, error) {
	config, _, err := LoadWithViper(filename)
	return config, err
}

// LoadByEnv loads configuration based on environment using Viper
func LoadByEnv(configDir string) (*Config, error) {
	v := viper.New()

	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	env := v.GetString("ENV")
	if env == "" {
		env = v.GetString("APP_ENV")
	}
	if env == "" {
		env = "development"
	}

	v.SetConfigName(fmt.Sprintf("config-%s", env))
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.setDefaults()

	return &config, nil
}

// LoadWithViper loads configuration and returns the viper instance for custom usage
func LoadWithViper(filename string) (*Config, *viper.Viper, error) {
	v := viper.New()

	v.SetConfigFile(filename)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.setDefaults()

	return &config, v, nil
}

// setDefaults sets default values for missing configuration
func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 2 * time.Minute
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 2
	}
	if c.Redis.SnapshotKey == "" {
		c.Redis.SnapshotKey = "spinrewards:engine:snapshot"
	}
	if c.JWT.Expiration == 0 {
		c.JWT.Expiration = 12 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.ExternalServices.RedemptionAPI.BaseURL == "" {
		c.ExternalServices.RedemptionAPI.BaseURL = "https://api.twitch.tv/helix"
	}
	if c.ExternalServices.RedemptionAPI.Timeout == 0 {
		c.ExternalServices.RedemptionAPI.Timeout = 10 * time.Second
	}
	if c.ExternalServices.WalletRegistry.Timeout == 0 {
		c.ExternalServices.WalletRegistry.Timeout = 10 * time.Second
	}
	if c.Twitch.Reward.Title == "" {
		c.Twitch.Reward.Title = "Spin the Wheel"
	}
	if c.Twitch.Reward.Cost == 0 {
		c.Twitch.Reward.Cost = 5000
	}
	if c.Twitch.Reward.Prompt == "" {
		c.Twitch.Reward.Prompt = "Enter your wallet address (0x...) to spin the wheel"
	}
	if c.Twitch.Reward.MaxPerUserPerStream == 0 {
		c.Twitch.Reward.MaxPerUserPerStream = 1
	}
	c.Twitch.Messages.setDefaults()
	if c.Wheel.SettleDelay == 0 {
		c.Wheel.SettleDelay = time.Second
	}
	if c.Wheel.AnimationDuration == 0 {
		c.Wheel.AnimationDuration = 5 * time.Second
	}
	if c.Wheel.PollInterval == 0 {
		c.Wheel.PollInterval = 10 * time.Second
	}
	if c.Wheel.MinTurns == 0 {
		c.Wheel.MinTurns = 5
	}
	if c.Chain.Confirmations == 0 {
		c.Chain.Confirmations = 1
	}
	if c.Chain.ReceiptPollInterval == 0 {
		c.Chain.ReceiptPollInterval = 2 * time.Second
	}
	if c.Chain.ReceiptTimeout == 0 {
		c.Chain.ReceiptTimeout = 5 * time.Minute
	}
	if c.Chain.Network.Decimals == 0 {
		c.Chain.Network.Decimals = 18
	}
	if c.Export.TokenType == "" {
		c.Export.TokenType = "erc20"
	}
	if c.Export.FilePrefix == "" {
		c.Export.FilePrefix = "wheel-payouts"
	}
}

func (m *MessagesConfig) setDefaults() {
	if m.Refund == "" {
		m.Refund = "@%s your wallet address is not valid, your points have been refunded."
	}
	if m.Rejected == "" {
		m.Rejected = "@%s your spin was refunded: %s"
	}
	if m.Canceled == "" {
		m.Canceled = "@%s your spin was removed from the queue, your points have been refunded."
	}
	if m.Won == "" {
		m.Won = "@%s won %s on the wheel!"
	}
}

// TopicOrDefault returns the configured topic name for key, or fallback.
func (c *KafkaConfig) TopicOrDefault(key, fallback string) string {
	if c.Topics != nil {
		if t, ok := c.Topics[key]; ok && t != "" {
			return t
		}
	}
	return fallback
}

// GetAddr returns Redis address
func (c *RedisConfig) GetAddr() string {
	return c.Addr
}

// SettlementEnabled reports whether enough chain config is present to settle.
func (c *ChainConfig) SettlementEnabled() bool {
	return c.SignerKey != "" && c.TokenAddress != "" && c.PayoutAddress != "" && c.ChainID != 0
}

// IsDevelopment returns true if environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// IsProduction returns true if environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
