// Package config carga la configuración de la app desde env vars,
// con soporte .env para desarrollo local.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config agrupa todo lo que cmd/app necesita para cablear el proceso.
type Config struct {
	Port string // puerto del server local de navegación

	APIBaseURL string // origin del backend REST
	AuthURL    string // origin del proveedor de auth
	AuthAPIKey string // api key pública del proveedor

	CartDSN  string // si viene, el carrito persiste en Postgres
	CartFile string // fallback: archivo JSON local

	LogLevel  string
	LogFormat string
}

const (
	defaultPort       = "4173"
	defaultAPIBaseURL = "http://localhost:3000"
	defaultCartFile   = "cart.json"
)

// Load lee env (y .env / .env.local si existen) y arma la Config.
// godotenv no pisa variables ya seteadas: OS env > .env.
func Load() (Config, error) {
	for _, f := range []string{".env", ".env.local"} {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", f, err)
			}
		}
	}

	cfg := Config{
		Port:       getenv("APP_PORT", defaultPort),
		APIBaseURL: getenv("API_BASE_URL", defaultAPIBaseURL),
		AuthURL:    os.Getenv("AUTH_URL"),
		AuthAPIKey: os.Getenv("AUTH_ANON_KEY"),
		CartDSN:    os.Getenv("CART_DSN"),
		CartFile:   getenv("CART_FILE", defaultCartFile),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		LogFormat:  os.Getenv("LOG_FORMAT"),
	}

	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return Config{}, fmt.Errorf("API_BASE_URL is required")
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
