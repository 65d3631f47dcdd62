package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	Marketplace MarketplaceConfig
	Storefront  StorefrontConfig
	Markup      MarkupConfig
	Storage     StorageConfig
	API         APIConfig
	LogLevel    string
	// SyncIntervalMinutes enables the background bulk-sync loop when > 0.
	SyncIntervalMinutes int
}

// MarketplaceConfig is used to call the sneaker marketplace API (catalog
// search, variants, market data) and its OAuth token endpoint.
type MarketplaceConfig struct {
	APIBaseURL   string // e.g. https://api.marketplace.com/v2
	AuthBaseURL  string // e.g. https://accounts.marketplace.com
	ClientID     string
	ClientSecret string
	APIKey       string // x-api-key header
	RedirectURI  string // OAuth callback URL registered with the marketplace
	CurrencyCode string // currency for market-data lookups
}

type StorefrontConfig struct {
	ShopDomain  string
	AccessToken string
	APIVersion  string
}

// MarkupConfig controls the sale-price formula. EndingOffset is subtracted
// after rounding to the nearest 5 to land on a psychological price ending.
type MarkupConfig struct {
	EndingOffset float64
}

type StorageConfig struct {
	TokenFilePath string
	SessionDir    string
}

type APIConfig struct {
	KeyHash string // bcrypt hash of the sync API key; see cmd/hash-key
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MARKETPLACE_CURRENCY", "EUR")
	viper.SetDefault("TOKEN_FILE_PATH", "./data/token.json")
	viper.SetDefault("SESSION_DIR", "./data/sessions")
	viper.SetDefault("MARKUP_ENDING_OFFSET", "0.10")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	offset, err := strconv.ParseFloat(getEnvOrViper("MARKUP_ENDING_OFFSET", "0.10"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MARKUP_ENDING_OFFSET: %w", err)
	}
	syncMinutes := 0
	if v := getEnvOrViper("SYNC_INTERVAL_MINUTES", "0"); v != "" {
		syncMinutes, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SYNC_INTERVAL_MINUTES: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		Marketplace: MarketplaceConfig{
			APIBaseURL:   strings.TrimSpace(getEnvOrViper("MARKETPLACE_API_URL", "")),
			AuthBaseURL:  strings.TrimSpace(getEnvOrViper("MARKETPLACE_AUTH_URL", "")),
			ClientID:     strings.TrimSpace(getEnvOrViper("MARKETPLACE_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(getEnvOrViper("MARKETPLACE_CLIENT_SECRET", "")),
			APIKey:       strings.TrimSpace(getEnvOrViper("MARKETPLACE_API_KEY", "")),
			RedirectURI:  strings.TrimSpace(getEnvOrViper("MARKETPLACE_REDIRECT_URI", "")),
			CurrencyCode: getEnvOrViper("MARKETPLACE_CURRENCY", "EUR"),
		},
		Storefront: StorefrontConfig{
			ShopDomain:  strings.TrimSpace(getEnvOrViper("SHOPIFY_SHOP_DOMAIN", "")),
			AccessToken: strings.TrimSpace(getEnvOrViper("SHOPIFY_ACCESS_TOKEN", "")),
			APIVersion:  getEnvOrViper("SHOPIFY_API_VERSION", "2024-10"),
		},
		Markup: MarkupConfig{
			EndingOffset: offset,
		},
		Storage: StorageConfig{
			TokenFilePath: getEnvOrViper("TOKEN_FILE_PATH", "./data/token.json"),
			SessionDir:    getEnvOrViper("SESSION_DIR", "./data/sessions"),
		},
		API: APIConfig{
			KeyHash: strings.TrimSpace(getEnvOrViper("SYNC_API_KEY_HASH", "")),
		},
		LogLevel:            getEnvOrViper("LOG_LEVEL", "info"),
		SyncIntervalMinutes: syncMinutes,
	}

	// Validate required fields
	if cfg.Storefront.ShopDomain == "" {
		return nil, fmt.Errorf("SHOPIFY_SHOP_DOMAIN is required")
	}
	if cfg.Storefront.AccessToken == "" {
		return nil, fmt.Errorf("SHOPIFY_ACCESS_TOKEN is required")
	}
	if cfg.Marketplace.APIBaseURL == "" {
		return nil, fmt.Errorf("MARKETPLACE_API_URL is required")
	}
	if cfg.Marketplace.APIKey == "" {
		return nil, fmt.Errorf("MARKETPLACE_API_KEY is required")
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}
