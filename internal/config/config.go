package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	Env                  string
	ProviderAPIURL       string
	ProviderAccessKeyID  string
	ProviderAccessSecret string
	EmbedDomain          string
	EmbedTriggerSelector string
	SubmitRatePerMin     int
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		Env:                  getenv("ENV", "dev"),
		ProviderAPIURL:       getenv("PROVIDER_API_URL", "https://api.klingai.com/v1/images/kolors-virtual-try-on"),
		ProviderAccessKeyID:  getenv("PROVIDER_ACCESS_KEY_ID", ""),
		ProviderAccessSecret: getenv("PROVIDER_ACCESS_KEY_SECRET", ""),
		EmbedDomain:          getenv("EMBED_DOMAIN", "http://localhost:8080"),
		EmbedTriggerSelector: getenv("EMBED_TRIGGER_SELECTOR", `[data-toggle="try-on-button"]`),
		SubmitRatePerMin:     getenvInt("SUBMIT_RATE_PER_MIN", 10),
	}
}

func getenv(key, defaultValue string) string {
	v := os.Getenv(key)
	if v != "" {
		return v
	}
	return defaultValue
}

func getenvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
