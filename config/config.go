package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config func to get env value from key
func Config(key string) string {
	// load .env file
	godotenv.Load(".env")
	return os.Getenv(key)
}
