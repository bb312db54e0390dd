package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Cities lists the royal cities plus Caerleon and Brecilien, in display order.
var Cities = []string{
	"Lymhurst",
	"Bridgewatch",
	"Martlock",
	"Thetford",
	"Fort Sterling",
	"Caerleon",
	"Brecilien",
}

// Quality is market quality metadata.
type Quality struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Qualities lists market qualities 1-5.
var Qualities = []Quality{
	{1, "Normal"},
	{2, "Good"},
	{3, "Outstanding"},
	{4, "Excellent"},
	{5, "Masterpiece"},
}

// QualityIDs returns 1..5.
func QualityIDs() []int {
	ids := make([]int, len(Qualities))
	for i, q := range Qualities {
		ids[i] = q.ID
	}
	return ids
}

// RefineSettings are the user-adjustable refining calculator inputs.
type RefineSettings struct {
	ResourceType  string  `json:"resource_type"`
	ReturnRate    float64 `json:"return_rate"` // percent
	TaxRate       float64 `json:"tax_rate"`    // percent
	ShopFee       float64 `json:"shop_fee"`    // silver per 100 nutrition
	Quantity      int     `json:"quantity"`
	BuyOrderCity  string  `json:"buy_order_city"`
	SellOrderCity string  `json:"sell_order_city"`
	Server        string  `json:"server"` // west | east | europe
}

// Config holds application settings (in-memory representation).
// Refine settings are persisted by internal/db.
type Config struct {
	Port     int    `json:"port"`
	DBPath   string `json:"db_path"`
	LogLevel string `json:"log_level"`

	CatalogURL      string        `json:"catalog_url"`
	CatalogTTL      time.Duration `json:"catalog_ttl"`
	CatalogSchedule string        `json:"catalog_schedule"` // cron spec
	PriceTTL        time.Duration `json:"price_ttl"`
	PriceSchedule   string        `json:"price_schedule"` // cron spec
	RequestsPerSec  float64       `json:"requests_per_sec"`
	RequestBurst    int           `json:"request_burst"`
	HTTPTimeout     time.Duration `json:"http_timeout"`

	Refine RefineSettings `json:"refine"`
}

// DefaultRefineSettings returns the calculator defaults.
func DefaultRefineSettings() RefineSettings {
	return RefineSettings{
		ResourceType:  "WOOD",
		ReturnRate:    36.7,
		TaxRate:       13,
		ShopFee:       500,
		Quantity:      999,
		BuyOrderCity:  Cities[0],
		SellOrderCity: Cities[1],
		Server:        "west",
	}
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Port:            13380,
		DBPath:          "albion-market.db",
		LogLevel:        "info",
		CatalogURL:      "https://raw.githubusercontent.com/broderickhyman/ao-bin-dumps/master/formatted/items.json",
		CatalogTTL:      24 * time.Hour,
		CatalogSchedule: "@every 24h",
		PriceTTL:        60 * time.Second,
		PriceSchedule:   "@every 60s",
		RequestsPerSec:  3,
		RequestBurst:    5,
		HTTPTimeout:     30 * time.Second,
		Refine:          DefaultRefineSettings(),
	}
}

// Load reads overrides from the environment. A .env file in the working
// directory is loaded first if present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := Default()
	cfg.Port = getEnvInt("ALBION_PORT", cfg.Port)
	cfg.DBPath = getEnv("ALBION_DB_PATH", cfg.DBPath)
	cfg.LogLevel = getEnv("ALBION_LOG_LEVEL", cfg.LogLevel)
	cfg.CatalogURL = getEnv("ALBION_CATALOG_URL", cfg.CatalogURL)
	cfg.CatalogTTL = getEnvDuration("ALBION_CATALOG_TTL", cfg.CatalogTTL)
	cfg.CatalogSchedule = getEnv("ALBION_CATALOG_SCHEDULE", cfg.CatalogSchedule)
	cfg.PriceTTL = getEnvDuration("ALBION_PRICE_TTL", cfg.PriceTTL)
	cfg.PriceSchedule = getEnv("ALBION_PRICE_SCHEDULE", cfg.PriceSchedule)
	cfg.RequestsPerSec = getEnvFloat("ALBION_RPS", cfg.RequestsPerSec)
	cfg.RequestBurst = getEnvInt("ALBION_BURST", cfg.RequestBurst)
	cfg.HTTPTimeout = getEnvDuration("ALBION_HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.Refine.Server = getEnv("ALBION_SERVER", cfg.Refine.Server)
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}
