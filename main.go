package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"canvastrmnl/config"
	"canvastrmnl/crypt"
	"canvastrmnl/errors"
	"canvastrmnl/logger"
	"canvastrmnl/server"
	"canvastrmnl/store"
	"canvastrmnl/trmnl"
)

var (
	verbose  bool
	insecure bool
	cfgPath  string
)

var rootCmd = &cobra.Command{
	Use:   "canvastrmnl",
	Short: "Canvas LMS assignments on TRMNL displays",
	Long: `canvastrmnl serves the TRMNL plugin that shows a user's upcoming and
overdue Canvas assignments.

Without a subcommand it runs in the mode named by APP_MODE (server or job).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetDebug(verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Mode == config.ModeJob {
			return runJob(cmd.Context(), cfg)
		}
		return runServer(cmd.Context(), cfg)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runServer(cmd.Context(), cfg)
	},
}

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Run scheduled jobs once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runJob(cmd.Context(), cfg)
	},
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, err
	}
	if cfg.Logging.UseLogFile {
		if err := logger.UseConfigFile(cfg.Logging.LogPath); err != nil {
			logger.Error(err)
		}
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	return store.Open(ctx, store.Options{
		Driver:        cfg.Store.Driver,
		DatabaseURL:   cfg.Store.DatabaseURL,
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: cfg.Store.RedisPassword,
		RedisDB:       cfg.Store.RedisDB,
	})
}

func runServer(ctx context.Context, cfg config.Config) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("Connected to the %s store.", cfg.Store.Driver)

	tc := trmnl.NewClient(cfg.Trmnl.BaseURL, cfg.Trmnl.ClientID, cfg.Trmnl.ClientSecret, nil)
	ks := trmnl.NewKeySet(cfg.Trmnl.BaseURL, nil)

	srv, err := server.New(st, crypt.New(cfg.EncryptionKey), tc, ks)
	if err != nil {
		return err
	}
	srv.Dev = cfg.Dev
	if cfg.Dev {
		logger.Warn("Development routes are enabled. DO NOT use this in production")
	}

	tls := cfg.Server.TLS && !insecure
	if !tls {
		logger.Warn("Running without TLS.")
	}
	err = server.Run(cfg.Addr(), tls, cfg.Server.Cert, cfg.Server.Key, srv.Handler())
	if err != nil {
		return errors.NewError("main", "server stopped", err)
	}
	return nil
}

func runJob(ctx context.Context, cfg config.Config) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	logger.Info("No jobs to run at this time.")
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.json", "Path to config.json")
	serveCmd.Flags().BoolVarP(&insecure, "insecure", "w", false, "Serve plain HTTP even when TLS is configured")

	rootCmd.AddCommand(serveCmd, jobCmd)
}

func main() {
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "canvastrmnl:", err)
		logger.Sync()
		os.Exit(1)
	}
}
