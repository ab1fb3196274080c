// Command registry_probe verifies registry connectivity and credentials
// from the current environment configuration. Deploy pipelines run it
// before cutting traffic over so a bad secret fails loudly instead of
// dead-lettering sync jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hawkerboys/tms-api/internal/registry"
	"github.com/hawkerboys/tms-api/pkg/config"
)

func main() {
	var (
		baseURL string
		env     string
		timeout time.Duration
	)

	flag.StringVar(&baseURL, "base-url", "", "Registry base URL (defaults to REGISTRY_BASE_URL)")
	flag.StringVar(&env, "env", "", "Registry environment tag (defaults to REGISTRY_ENV)")
	flag.DurationVar(&timeout, "timeout", 15*time.Second, "Overall probe timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	regCfg := cfg.Registry
	if baseURL != "" {
		regCfg.BaseURL = baseURL
	}
	if env != "" {
		regCfg.Environment = env
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := registry.New(regCfg, zap.NewNop())

	start := time.Now()
	token, err := client.ObtainToken(ctx)
	elapsed := time.Since(start)

	fmt.Println("Registry Probe Report")
	fmt.Println("=====================")
	fmt.Printf("Base URL: %s\n", regCfg.BaseURL)
	fmt.Printf("Environment: %s\n", regCfg.Environment)
	if err != nil {
		fmt.Printf("[FAIL] token grant after %s: %v\n", elapsed, err)
		os.Exit(1)
	}
	fmt.Printf("[OK] token grant in %s (type %s, expires %s)\n",
		elapsed, token.TokenType, token.ExpiresAt.Format(time.RFC3339))
}
