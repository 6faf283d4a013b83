// Command prodwizard enters one month of production data for a site
// through the API, warning before it would overwrite an existing month.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"prodtracker-backend/application/workflow"
	"prodtracker-backend/pkg/client"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	apiURL := flag.String("api", envOr("PRODTRACKER_API", "http://localhost:8080"), "base URL of the production API")
	companyID := flag.Int("company", 1, "company id")
	siteID := flag.Int("site", 0, "production site id (lists sites when omitted)")
	verbose := flag.BoolP("verbose", "v", false, "log API requests to stderr")
	flag.Parse()

	level := zapcore.WarnLevel
	if *verbose {
		level = zapcore.DebugLevel
	}
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.New(*apiURL, client.WithLogger(logger))

	if *siteID == 0 {
		if err := listSites(ctx, api, *companyID); err != nil {
			logger.Error("Failed to list sites", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	wizard := workflow.NewWizard(api, *companyID, *siteID)
	if err := newSession(wizard, os.Stdin, os.Stdout).run(ctx); err != nil {
		logger.Error("Wizard failed", zap.String("session", wizard.ID()), zap.Error(err))
		os.Exit(1)
	}
}

func listSites(ctx context.Context, api *client.Client, companyID int) error {
	sites, err := api.ListSites(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Pass --site with one of:")
	for _, s := range sites {
		if s.CompanyID != companyID {
			continue
		}
		fmt.Printf("  %4d  %-30s %-6s %s\n", s.ProductionSiteID, s.Name, s.Type, s.Status)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
