// Command dashtoken issues credentials for the dashboard routes: a signed
// bearer token, or the bcrypt hash of an API key for DASHBOARD_API_KEY_HASH.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"sitepulse/api/config"
	"sitepulse/api/utils"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	name := flag.String("name", "dashboard", "client name embedded in the token")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	hashKey := flag.String("hash-key", "", "print the bcrypt hash of this API key instead of a token")
	flag.Parse()

	if *hashKey != "" {
		hash, err := utils.HashAPIKey(*hashKey)
		if err != nil {
			log.Fatalf("Failed to hash API key: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Dashboard.JWTSecret == "" {
		log.Fatal("DASHBOARD_JWT_SECRET is not set")
	}

	token, err := utils.GenerateDashboardToken([]byte(cfg.Dashboard.JWTSecret), *name, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
