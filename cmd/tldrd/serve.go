package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LynnGuo666/Gitea-TLDR/internal/config"
	"github.com/LynnGuo666/Gitea-TLDR/internal/daemon"
	"github.com/LynnGuo666/Gitea-TLDR/internal/forge"
	"github.com/LynnGuo666/Gitea-TLDR/internal/provider"
	"github.com/LynnGuo666/Gitea-TLDR/internal/repo"
	"github.com/LynnGuo666/Gitea-TLDR/internal/storage"
	"github.com/LynnGuo666/Gitea-TLDR/internal/webhook"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		dbPath     string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

			cfg, err := config.LoadFrom(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ServerAddr = addr
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if debug {
				cfg.Debug = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return serve(cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "server address (overrides config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "path to sqlite database (overrides config; empty config keeps sessions in memory)")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	return cmd
}

func serve(cfg *config.Config) error {
	var store storage.Store
	if cfg.DBPath == "" {
		log.Printf("Warning: no db_path configured, sessions are kept in memory")
		store = storage.NewMemoryStore()
	} else {
		sqliteStore, err := storage.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		store = sqliteStore
		log.Printf("Database: %s", cfg.DBPath)
	}
	defer store.Close()

	repos, err := repo.NewManager(cfg.WorkDir)
	if err != nil {
		return err
	}

	engine, err := provider.NewEngine(cfg.DefaultProvider, cfg.ProviderCmd(cfg.DefaultProvider), cfg.Debug, cfg.ProviderCmds())
	if err != nil {
		return err
	}
	log.Printf("Review engine: %s (available: %v)", engine.DefaultProviderName(), engine.Registry().Available())

	forgeClient := forge.NewGiteaClient(cfg.GiteaURL, cfg.GiteaToken, cfg.Debug)
	pipeline := webhook.NewPipeline(cfg, forgeClient, repos, engine, store)
	server := daemon.NewServer(cfg, pipeline)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		if err := server.Stop(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
		os.Exit(0)
	}()

	return server.Start()
}
