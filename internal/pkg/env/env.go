package env

import (
	"os"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

// Env holds the values read from the .env file. They take precedence over
// the process environment.
var Env map[string]string

// envFiles are tried in order; the binaries run from the repo root or
// from their cmd/<name> directory.
var envFiles = []string{".env", "../../.env", "../../../.env"}

func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetInt returns the positive integer stored under key, or def.
func GetInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(GetEnv(key, "")))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// GetBool accepts the forms strconv.ParseBool does.
func GetBool(key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(GetEnv(key, "")))
	if err != nil {
		return def
	}
	return v
}

// SetupEnvFile loads the first .env file found. Without one the process
// environment alone is used, which is how the containers are configured.
func SetupEnvFile() {
	for _, name := range envFiles {
		values, err := godotenv.Read(name)
		if err == nil {
			Env = values
			return
		}
	}
	Env = map[string]string{}
	log.Warn("no .env file found, using process environment")
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
