package config

import (
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		// A local .env is optional; real deployments set env vars directly.
		_ = godotenv.Load()

		viper.AutomaticEnv()

		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("database_path", "DATABASE_PATH")
		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("market_api_url", "MARKET_API_URL")
		viper.BindEnv("debug", "DEBUG")

		viper.SetDefault("database_path", "data/cryptopulse.db")
		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("market_api_url", "https://api.coingecko.com/api/v3")
		viper.SetDefault("debug", false)
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}
