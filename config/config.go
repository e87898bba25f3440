package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds everything main needs to wire the process.
type Config struct {
	MongoDBURI string
	DBName     string
	RedisAddr  string
	Port       string
	JWTSecret  string
	// Store selects the persistence backend: "mongo" (default) or
	// "memory" for local development without a database.
	Store string
}

// LoadConfig reads configuration from the environment, with a .env file as
// fallback for local runs.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	return &Config{
		MongoDBURI: getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:     getEnv("DB_NAME", "rooms_db"),
		RedisAddr:  getEnv("REDIS_ADDR", ""),
		Port:       getEnv("PORT", "8080"),
		JWTSecret:  getEnv("JWT_SECRET", "dev-secret-change-me"),
		Store:      getEnv("STORE", "mongo"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
