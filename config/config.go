package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Dotenv string `mapstructure:"dotenv"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	OpenRouter struct {
		BaseURL  string `mapstructure:"baseURL"`
		Model    string `mapstructure:"model"`
		Referrer string `mapstructure:"referrer"`
		Title    string `mapstructure:"title"`
		APIKey   string `mapstructure:"-"`
	} `mapstructure:"openRouter"`
	Maps struct {
		APIKey string `mapstructure:"-"`
	} `mapstructure:"maps"`
	Auth struct {
		JWTSecret string `mapstructure:"-"`
	} `mapstructure:"auth"`
	Assistant struct {
		HeartbeatInterval time.Duration `mapstructure:"heartbeatInterval"`
		TokenDelay        time.Duration `mapstructure:"tokenDelay"`
		ResultLimit       int           `mapstructure:"resultLimit"`
		SuggestionsTTL    time.Duration `mapstructure:"suggestionsTTL"`
	} `mapstructure:"assistant"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}

	// Secrets come from the environment only.
	config.OpenRouter.APIKey = os.Getenv("OPENROUTER_API_KEY")
	config.Maps.APIKey = os.Getenv("GOOGLE_MAPS_API_KEY")
	config.Auth.JWTSecret = os.Getenv("JWT_SECRET_KEY")
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		config.Repositories.Postgres.Password = pw
	}

	return config, nil
}
