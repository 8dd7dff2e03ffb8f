package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string
	DatabaseURL   string

	LLMProvider     string
	GeminiAPIKey    string
	DefaultLLMModel string

	Marketplace        string // "amazon" or "rakuten"
	AmazonAccessKey    string
	AmazonSecretKey    string
	AmazonPartnerTag   string
	AmazonHost         string
	AmazonRegion       string
	RakutenAppID       string
	RakutenAffiliateID string

	// Minimum delay between consecutive live marketplace searches.
	SearchDelayMS int

	ExcludedBrandsFile string
	ExcludedBrands     []string

	TaskMaxRetries int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func Load() Config {
	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8082"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DatabaseURL:   getenv("DATABASE_URL", "postgres://localhost:5432/desktour?sslmode=disable"),

		LLMProvider:     getenv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		DefaultLLMModel: getenv("DEFAULT_LLM_MODEL", "gemini-1.5-flash"),

		Marketplace:        getenv("MARKETPLACE", "amazon"),
		AmazonAccessKey:    os.Getenv("AMAZON_PAAPI_ACCESS_KEY"),
		AmazonSecretKey:    os.Getenv("AMAZON_PAAPI_SECRET_KEY"),
		AmazonPartnerTag:   os.Getenv("AMAZON_PARTNER_TAG"),
		AmazonHost:         getenv("AMAZON_PAAPI_HOST", "webservices.amazon.co.jp"),
		AmazonRegion:       getenv("AMAZON_PAAPI_REGION", "us-west-2"),
		RakutenAppID:       os.Getenv("RAKUTEN_APP_ID"),
		RakutenAffiliateID: os.Getenv("RAKUTEN_AFFILIATE_ID"),

		SearchDelayMS: getenvInt("SEARCH_DELAY_MS", 1100),

		ExcludedBrandsFile: getenv("EXCLUDED_BRANDS_FILE", "./excluded_brands.yaml"),

		TaskMaxRetries: getenvInt("TASK_MAX_RETRIES", 3),
	}
	if cfg.RedisAddr == "" {
		panic(fmt.Errorf("REDIS_ADDR is required"))
	}
	cfg.ExcludedBrands = loadExcludedBrands(cfg.ExcludedBrandsFile)
	return cfg
}

type excludedBrandsFile struct {
	Brands []string `yaml:"brands"`
}

// loadExcludedBrands reads the excluded-brand list. A missing or broken file
// means no exclusions, not a startup failure.
func loadExcludedBrands(path string) []string {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var f excludedBrandsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil
	}
	return f.Brands
}
