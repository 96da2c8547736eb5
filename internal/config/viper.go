package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

func NewViper() *viper.Viper {
	config := viper.New()

	if os.Getenv("ENV") == "production" {
		config.SetConfigName("config.prod")
	} else {
		config.SetConfigName("config")
	}

	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()
	setDefaults(config)

	if err := config.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	return config
}

func setDefaults(config *viper.Viper) {
	config.SetDefault("app.name", "halpi-mastery")
	config.SetDefault("api.port", 8080)
	config.SetDefault("api.prefork", false)
	config.SetDefault("log.level", "info")
	config.SetDefault("log.format", "text")
	config.SetDefault("database.port", 5432)
	config.SetDefault("database.sslmode", "disable")
	config.SetDefault("database.timezone", "UTC")
	config.SetDefault("database.max_open_conns", 20)
	config.SetDefault("database.max_idle_conns", 5)
	config.SetDefault("redis.ttl", "30m")
	config.SetDefault("llm.provider", "openai")
	config.SetDefault("llm.timeout", "30s")
	config.SetDefault("llm.retry.max_attempts", 3)
	config.SetDefault("mastery.evaluation_parallelism", 4)
	config.SetDefault("mastery.save_timeout", "10s")
	config.SetDefault("mastery.session_ttl", "30m")
	config.SetDefault("seed.demo", false)
}
