/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the transfer-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string  `mapstructure:"SERVER_PORT"`
	DatabaseURL          string  `mapstructure:"DATABASE_URL"`
	RedisURL             string  `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string  `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string  `mapstructure:"RABBITMQ_URL"`
	AuditExchange        string  `mapstructure:"AUDIT_EXCHANGE"`
	RefundStatusQueue    string  `mapstructure:"REFUND_STATUS_QUEUE"`
	GatewayAPIBaseURL    string  `mapstructure:"GATEWAY_API_BASE_URL"`
	GatewayAPIKey        string  `mapstructure:"GATEWAY_API_KEY"`
	GatewayVerifyTimeout int     `mapstructure:"GATEWAY_VERIFY_TIMEOUT_MS"`
	FeeCapPercent        float64 `mapstructure:"FEE_CAP_PERCENT"`
	FeeMarkupPercent     float64 `mapstructure:"FEE_MARKUP_PERCENT"`
	DefaultPhoneCountry  string  `mapstructure:"DEFAULT_PHONE_COUNTRY"`
	OperatorTablePath    string  `mapstructure:"OPERATOR_TABLE_PATH"`
	RefundRetryAttempts  int     `mapstructure:"REFUND_RETRY_ATTEMPTS"`
	ReconcileSchedule    string  `mapstructure:"REFUND_RECONCILE_SCHEDULE"`
	ReconcileLimit       int     `mapstructure:"REFUND_RECONCILE_LIMIT"`
	ReconcileFailAfterHr int     `mapstructure:"REFUND_RECONCILE_FAIL_AFTER_HOURS"`
	InternalAPIKey       string  `mapstructure:"INTERNAL_API_KEY"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "sahelpay:rate_limit")
	viper.SetDefault("AUDIT_EXCHANGE", "sahelpay.audit")
	viper.SetDefault("REFUND_STATUS_QUEUE", "transfer_service.refund_updates")
	viper.SetDefault("GATEWAY_VERIFY_TIMEOUT_MS", 5000)
	viper.SetDefault("FEE_CAP_PERCENT", 7.0)
	viper.SetDefault("FEE_MARKUP_PERCENT", 0.0)
	viper.SetDefault("DEFAULT_PHONE_COUNTRY", "SN")
	viper.SetDefault("REFUND_RETRY_ATTEMPTS", 3)
	viper.SetDefault("REFUND_RECONCILE_SCHEDULE", "*/10 * * * *")
	viper.SetDefault("REFUND_RECONCILE_LIMIT", 100)
	viper.SetDefault("REFUND_RECONCILE_FAIL_AFTER_HOURS", 24)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "TRANSFER_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("AUDIT_EXCHANGE")
	_ = viper.BindEnv("REFUND_STATUS_QUEUE")
	_ = viper.BindEnv("GATEWAY_API_BASE_URL")
	_ = viper.BindEnv("GATEWAY_API_KEY")
	_ = viper.BindEnv("GATEWAY_VERIFY_TIMEOUT_MS")
	_ = viper.BindEnv("FEE_CAP_PERCENT")
	_ = viper.BindEnv("FEE_MARKUP_PERCENT")
	_ = viper.BindEnv("DEFAULT_PHONE_COUNTRY")
	_ = viper.BindEnv("OPERATOR_TABLE_PATH")
	_ = viper.BindEnv("REFUND_RETRY_ATTEMPTS")
	_ = viper.BindEnv("REFUND_RECONCILE_SCHEDULE")
	_ = viper.BindEnv("REFUND_RECONCILE_LIMIT")
	_ = viper.BindEnv("REFUND_RECONCILE_FAIL_AFTER_HOURS")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "TRANSFER_SERVICE_INTERNAL_API_KEY")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("TRANSFER_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "sahelpay:rate_limit"
	}

	config.DefaultPhoneCountry = strings.ToUpper(strings.TrimSpace(config.DefaultPhoneCountry))
	if config.DefaultPhoneCountry == "" {
		config.DefaultPhoneCountry = "SN"
	}

	if config.FeeCapPercent < 0 {
		log.Printf("level=warn component=config msg=\"negative fee cap configured; using default\" cap_percent=%f", config.FeeCapPercent)
		config.FeeCapPercent = 7.0
	}
	if config.FeeMarkupPercent < 0 {
		log.Printf("level=warn component=config msg=\"negative fee markup configured; coercing to zero\" markup_percent=%f", config.FeeMarkupPercent)
		config.FeeMarkupPercent = 0
	}
	if config.GatewayVerifyTimeout <= 0 {
		config.GatewayVerifyTimeout = 5000
	}
	if config.RefundRetryAttempts <= 0 {
		config.RefundRetryAttempts = 3
	}
	if config.ReconcileLimit <= 0 {
		config.ReconcileLimit = 100
	}
	if config.ReconcileFailAfterHr <= 0 {
		config.ReconcileFailAfterHr = 24
	}
	if strings.TrimSpace(config.ReconcileSchedule) == "" {
		config.ReconcileSchedule = "*/10 * * * *"
	}

	return
}
