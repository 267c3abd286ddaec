package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	driverFile     = "file"
	driverPostgres = "postgres"
)

type config struct {
	Port     string
	LogLevel string

	StoreDriver  string
	ProductsFile string
	CartsFile    string
	DatabaseURL  string

	SeedCatalog      bool
	AdminJWTSecret   string
	MetricsEnabled   bool
	MetricsToken     string
	CartCreatePerMin int
}

// loadConfig reads the environment, after merging a .env file if one is
// present. Variables already set win over the file.
func loadConfig() config {
	_ = godotenv.Load()

	return config{
		Port:     getenv("PORT", "8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		StoreDriver:  strings.ToLower(getenv("STORE_DRIVER", driverFile)),
		ProductsFile: getenv("PRODUCTS_FILE", "data/products.json"),
		CartsFile:    getenv("CARTS_FILE", "data/carts.json"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		SeedCatalog:      getbool("SEED_CATALOG", true),
		AdminJWTSecret:   os.Getenv("ADMIN_JWT_SECRET"),
		MetricsEnabled:   getbool("METRICS_ENABLED", true),
		MetricsToken:     os.Getenv("METRICS_TOKEN"),
		CartCreatePerMin: getint("CART_CREATE_LIMIT_PER_MIN", 30),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(k))
	if err != nil {
		return def
	}
	return v
}

func getint(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
