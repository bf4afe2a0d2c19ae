package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds agent configuration.
type Config struct {
	DatabaseURL           string
	StoreDriver           string // "postgres" or "memory"
	ServerAddr            string
	CallbackSecret        string
	DisplayName           string
	SellableItemName      string
	KeyPrice              decimal.Decimal
	PriceCurrency         string
	RequiredConfirmations int
	Admins                []string
	OrderTTL              time.Duration
	StatusRefreshInterval time.Duration
	CheckoutBaseURL       string
	SimInventory          int
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "keyvend")
		pass := getenv("POSTGRES_PASSWORD", "keyvend_pass")
		db := getenv("POSTGRES_DB", "keyvend")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}

	secret := os.Getenv("CALLBACK_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("CALLBACK_SECRET is required")
	}

	price, err := decimal.NewFromString(getenv("KEY_PRICE", "2.49"))
	if err != nil {
		return nil, fmt.Errorf("invalid KEY_PRICE: %w", err)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("KEY_PRICE must not be negative")
	}

	return &Config{
		DatabaseURL:           dsn,
		StoreDriver:           getenv("STORE_DRIVER", "postgres"),
		ServerAddr:            getenv("SERVER_ADDR", "0.0.0.0:8888"),
		CallbackSecret:        secret,
		DisplayName:           getenv("AGENT_DISPLAY_NAME", "Keyvend"),
		SellableItemName:      getenv("SELLABLE_ITEM_NAME", "Mann Co. Supply Crate Key"),
		KeyPrice:              price,
		PriceCurrency:         getenv("PRICE_CURRENCY", "USD"),
		RequiredConfirmations: parseInt(getenv("REQUIRED_CONFIRMATIONS", "6"), 6),
		Admins:                splitList(os.Getenv("ADMINS")),
		OrderTTL:              parseDuration(getenv("ORDER_TTL", "24h"), 24*time.Hour),
		StatusRefreshInterval: parseDuration(getenv("STATUS_REFRESH_INTERVAL", "5m"), 5*time.Minute),
		CheckoutBaseURL:       os.Getenv("CHECKOUT_BASE_URL"),
		SimInventory:          parseInt(getenv("SIM_INVENTORY", "100"), 100),
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
