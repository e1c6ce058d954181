// Package main provides the aerobase-api server for navigational reference
// data.
//
// This is a standalone REST API server over the local navigational database:
// proximity queries for airports, waypoints and navaids, flight-plan
// validation and route calculation, and device registration. Record updates
// can be streamed in over NATS to keep the database current.
//
// Usage:
//
//	aerobase-api [options]
//
// Options:
//
//	-backend NAME       Storage backend: sqlite or postgres (default: sqlite, env: AEROBASE_BACKEND)
//	-db PATH            SQLite database path (default: aerobase.db, env: AEROBASE_DB)
//	-pg-host HOST       PostgreSQL host (default: localhost, env: POSTGRES_HOST)
//	-pg-port PORT       PostgreSQL port (default: 5432, env: POSTGRES_PORT)
//	-pg-database DB     PostgreSQL database (default: aerobase, env: POSTGRES_DATABASE)
//	-pg-user USER       PostgreSQL user (default: aerobase, env: POSTGRES_USER)
//	-pg-password PASS   PostgreSQL password (default: aerobase, env: POSTGRES_PASSWORD)
//	-port N             HTTP port (default: 8080)
//	-auth               Enable API key authentication
//	-api-keys KEYS      Comma-separated list of valid API keys
//	-audit              Record queries to ClickHouse
//	-ch-host HOST       ClickHouse host (default: localhost, env: CLICKHOUSE_HOST)
//	-ch-port PORT       ClickHouse port (default: 9000, env: CLICKHOUSE_PORT)
//	-nats               Subscribe to navdata updates over NATS
//	-nats-url URL       NATS server URL (default: nats://127.0.0.1:4222, env: NATS_URL)
//
// API Endpoints:
//
//	GET  /api/v1/health
//	GET  /api/v1/airports/near?lat=&lon=&radius_nm=
//	GET  /api/v1/waypoints/near?lat=&lon=&radius_nm=
//	GET  /api/v1/navaids/near?lat=&lon=&radius_nm=
//	GET  /api/v1/nearest?lat=&lon=&kind=
//	POST /api/v1/flightplan/validate
//	POST /api/v1/flightplan/route
//	GET  /api/v1/device
//
// Authentication:
//
//	When -auth is enabled, requests must include an API key via:
//	  - X-API-Key header
//	  - Authorization: Bearer <key> header
//	  - ?api_key=<key> query parameter
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"aerobase/internal/api"
	"aerobase/internal/navsync"
	"aerobase/internal/service"
	"aerobase/internal/storage"
)

func main() {
	_ = godotenv.Load(".env")

	backend := flag.String("backend", envOrDefault("AEROBASE_BACKEND", "sqlite"), "Storage backend (sqlite or postgres)")
	dbPath := flag.String("db", envOrDefault("AEROBASE_DB", "aerobase.db"), "SQLite database path")

	pgHost := flag.String("pg-host", envOrDefault("POSTGRES_HOST", "localhost"), "PostgreSQL host")
	pgPort := flag.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", 5432), "PostgreSQL port")
	pgUser := flag.String("pg-user", envOrDefault("POSTGRES_USER", "aerobase"), "PostgreSQL user")
	pgPassword := flag.String("pg-password", envOrDefault("POSTGRES_PASSWORD", "aerobase"), "PostgreSQL password")
	pgDB := flag.String("pg-database", envOrDefault("POSTGRES_DATABASE", "aerobase"), "PostgreSQL database")

	port := flag.Int("port", 8080, "HTTP port for API server")
	authEnabled := flag.Bool("auth", false, "Enable API key authentication")
	apiKeys := flag.String("api-keys", "", "Comma-separated list of valid API keys (when auth enabled)")

	auditEnabled := flag.Bool("audit", false, "Record queries to ClickHouse")
	chHost := flag.String("ch-host", envOrDefault("CLICKHOUSE_HOST", "localhost"), "ClickHouse host")
	chPort := flag.Int("ch-port", envOrDefaultInt("CLICKHOUSE_PORT", 9000), "ClickHouse port")

	natsEnabled := flag.Bool("nats", false, "Subscribe to navdata updates over NATS")
	natsURL := flag.String("nats-url", envOrDefault("NATS_URL", "nats://127.0.0.1:4222"), "NATS server URL")

	flag.Parse()

	ctx := context.Background()

	cfg := service.DefaultConfig()
	cfg.Storage.Backend = storage.Backend(*backend)
	cfg.Storage.SQLitePath = *dbPath
	cfg.Storage.Postgres = storage.PostgresConfig{
		Host:     *pgHost,
		Port:     *pgPort,
		Database: *pgDB,
		User:     *pgUser,
		Password: *pgPassword,
	}
	cfg.Storage.Audit.Host = *chHost
	cfg.Storage.Audit.Port = *chPort
	cfg.EnableAudit = *auditEnabled

	svc, err := service.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening service: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = svc.Close() }()

	if *natsEnabled {
		syncCfg := navsync.DefaultConfig()
		syncCfg.URL = *natsURL
		sub := navsync.NewSubscriber(syncCfg, svc.Gateway(), svc.Engine())
		if err := sub.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting navsync: %v\n", err)
			os.Exit(1)
		}
		defer sub.Stop()
	}

	// Parse API keys.
	var keys []string
	if *apiKeys != "" {
		keys = strings.Split(*apiKeys, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
	}

	server := api.NewServer(svc, api.Config{
		Port:        *port,
		AuthEnabled: *authEnabled,
		APIKeys:     keys,
	})

	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
