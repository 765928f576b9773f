package config

import (
	"os"
	"strings"
)

// Config carries the environment-driven settings for the API. Values are
// read once at startup and passed down to the services that need them.
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string
	Env       string
	Debug     bool

	PaystackSecretKey   string
	PaystackBaseURL     string
	PaystackWebhookIPs  []string
	SupportedCurrencies []string

	OrdersWebhookSecret     string
	OrdersWebhookAllowedIPs []string
}

// Load reads configuration from the environment, applying defaults
// suitable for local development.
func Load() *Config {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		DBPath:              getEnv("DB_PATH", "payments.db"),
		JWTSecret:           getEnv("JWT_SECRET", "avthrift-secret-key"),
		Env:                 getEnv("ENV", "development"),
		Debug:               os.Getenv("DEBUG") == "true",
		PaystackSecretKey:   os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:     getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackWebhookIPs:  splitList(os.Getenv("PAYSTACK_WEBHOOK_IPS")),
		SupportedCurrencies: splitList(getEnv("PAYSTACK_SUPPORTED_CURRENCIES", "NGN,USD,GHS,ZAR,KES,XOF")),

		OrdersWebhookSecret:     os.Getenv("ORDERS_WEBHOOK_SECRET"),
		OrdersWebhookAllowedIPs: splitList(os.Getenv("ORDERS_WEBHOOK_ALLOWED_IPS")),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
