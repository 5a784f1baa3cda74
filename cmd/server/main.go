//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/himanishpuri/landmark/pkg/landmark"
	"github.com/himanishpuri/landmark/pkg/logger"
)

var (
	port           int
	dbPath         string
	storeKind      string
	tempDir        string
	sampleRate     int
	allowedOrigins string
)

func registerFlags(fs *flag.FlagSet) {
	fs.IntVar(&port, "port", getEnvIntOrDefault("PORT", 8080), "HTTP server port")
	fs.StringVar(&dbPath, "db", getEnvOrDefault("LANDMARK_DB_PATH", landmark.DefaultDBPath), "Path to the catalog store")
	fs.StringVar(&storeKind, "store", getEnvOrDefault("LANDMARK_STORE", landmark.DefaultStoreKind), "Store backend: sqlite, badger or file")
	fs.StringVar(&tempDir, "temp", getEnvOrDefault("LANDMARK_TEMP_DIR", os.TempDir()), "Temporary directory for uploads")
	fs.IntVar(&sampleRate, "rate", getEnvIntOrDefault("LANDMARK_SAMPLE_RATE", landmark.DefaultSampleRate), "Required audio sample rate (0 accepts any)")
	fs.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func parseOrigins(raw string) []string {
	if raw == "*" {
		return []string{"*"}
	}
	origins := strings.Split(raw, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

func main() {
	_ = godotenv.Load()
	registerFlags(flag.CommandLine)
	flag.Parse()

	log := logger.GetLogger().With("server")

	service, err := landmark.NewService(
		landmark.WithDBPath(dbPath),
		landmark.WithStoreKind(storeKind),
		landmark.WithTempDir(tempDir),
		landmark.WithSampleRate(sampleRate),
		landmark.WithAutoRestore(true),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		StoreKind:      storeKind,
		TempDir:        tempDir,
		SampleRate:     sampleRate,
		AllowedOrigins: parseOrigins(allowedOrigins),
	}

	server := NewServer(service, config, log)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
