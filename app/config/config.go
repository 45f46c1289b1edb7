package config

import (
	"os"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	DB     PostgresConfig
	Stripe StripeConfig
	Gemini GeminiConfig
	Logs   LogConfig
}

type LogConfig struct {
	Style string
	Level string
}

type PostgresConfig struct {
	Username string
	Password string
	URL      string
	Port     string
	Database string
}

type StripeConfig struct {
	SecretKey           string
	WebhookSecret       string
	PriceIDBasicMonthly string
	PriceIDProMonthly   string
	FrontendURL         string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Logs: LogConfig{
			Style: os.Getenv("LOG_STYLE"),
			Level: os.Getenv("LOG_LEVEL"),
		},
		DB: PostgresConfig{
			Username: os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PWD"),
			URL:      os.Getenv("POSTGRES_URL"),
			Port:     os.Getenv("POSTGRES_PORT"),
			Database: os.Getenv("POSTGRES_DB"),
		},
		Stripe: StripeConfig{
			SecretKey:           os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:       os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PriceIDBasicMonthly: os.Getenv("STRIPE_PRICE_ID_BASIC_MONTHLY"),
			PriceIDProMonthly:   os.Getenv("STRIPE_PRICE_ID_PRO_MONTHLY"),
			FrontendURL:         os.Getenv("FRONTEND_URL"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  os.Getenv("GEMINI_MODEL"),
		},
	}

	return cfg, nil
}

// PostgresDSN builds the connection string for lib/pq.
func (c *Config) PostgresDSN() string {
	dsn := "postgres://" + c.DB.Username + ":" + c.DB.Password + "@" + c.DB.URL + ":" + c.DB.Port
	if c.DB.Database != "" {
		dsn += "/" + c.DB.Database
	}
	return dsn
}
