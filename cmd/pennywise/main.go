package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pennywiseapp/pennywise/internal/config"
	"github.com/pennywiseapp/pennywise/internal/market"
	"github.com/pennywiseapp/pennywise/internal/server"
	"github.com/pennywiseapp/pennywise/internal/store"
	"github.com/pennywiseapp/pennywise/internal/toolserver"
)

var rootCmd = &cobra.Command{
	Use:   "pennywise",
	Short: "pennywise - personal finance backend",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server (HTTP + scheduler + alerts)",
	RunE:  runServe,
}

var toolserverCmd = &cobra.Command{
	Use:   "toolserver",
	Short: "Run the tool server over stdin/stdout (spawned per call by serve)",
	RunE:  runToolServer,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize the config file",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pennywise status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(serveCmd, toolserverCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("API key not set. Run 'pennywise onboard' or set PENNYWISE_API_KEY / ANTHROPIC_API_KEY")
	}
	if len(cfg.Server.Tokens) == 0 {
		return fmt.Errorf("no API tokens configured. Add server.tokens to %s", config.ConfigPath())
	}

	ctx := context.Background()
	srv, err := server.New(ctx, cfg)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func runToolServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	st, err := store.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer func() { _ = st.Close(ctx) }()

	providers := []market.Provider{
		market.NewYahooProvider(""),
		market.NewStooqProvider(""),
	}
	if cfg.Market.AlphaVantageKey != "" {
		providers = append(providers, market.NewAlphaProvider("", cfg.Market.AlphaVantageKey))
	}

	srv := toolserver.NewServer(toolserver.Deps{
		Data:   toolserver.StoreData{Store: st},
		Market: market.NewResolver(providers...),
		News:   toolserver.NewNewsChain(cfg.Market.NewsAPIKey, "", ""),
	})
	return srv.Run(ctx, os.Stdin, os.Stdout)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists: %s\n", cfgPath)
		return nil
	}

	if err := config.SaveConfig(config.DefaultConfig()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("Created config: %s\n", cfgPath)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key and tokens\n", cfgPath)
	fmt.Println("  2. Or set PENNYWISE_API_KEY / ANTHROPIC_API_KEY")
	fmt.Println("  3. Run 'pennywise serve'")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Listen: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Mongo: %s/%s\n", cfg.Mongo.URI, cfg.Mongo.Database)
	fmt.Printf("Model: %s\n", cfg.Provider.Model)
	fmt.Printf("Provider: %s\n", providerDisplay(cfg.Provider.Type))
	if key := cfg.Provider.APIKey; key != "" && len(key) > 8 {
		fmt.Printf("API Key: %s...%s\n", key[:4], key[len(key)-4:])
	} else if key != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("Tokens: %d configured\n", len(cfg.Server.Tokens))
	fmt.Printf("Alerts: enabled=%v\n", cfg.Alerts.Enabled)
	fmt.Printf("Scheduler: enabled=%v (digest %q, recurring %q)\n",
		cfg.Sched.Enabled, cfg.Sched.DigestCron, cfg.Sched.RecurringCron)
	return nil
}

func providerDisplay(t string) string {
	if t == "" {
		return "anthropic (default)"
	}
	return t
}
