package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pairsync/pairsync/internal/config"
	"github.com/pairsync/pairsync/internal/storage"
	"github.com/pairsync/pairsync/internal/sync"
	"github.com/pairsync/pairsync/internal/utils"
	"github.com/pairsync/pairsync/internal/version"
)

var (
	home, _        = os.UserHomeDir()
	configFileName = "config"
)

var rootCmd = &cobra.Command{
	Use:     "pairsync",
	Short:   "Batch two-way sync between local directories and remote storage",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &config.Config{
			Provider: viper.GetString("provider"),
			Workers:  viper.GetInt("workers"),
			DryRun:   viper.GetBool("dry_run"),
			Path:     viper.ConfigFileUsed(),
		}
		if err := viper.UnmarshalKey("pairs", &cfg.Pairs); err != nil {
			return fmt.Errorf("config pairs: %w", err)
		}
		if err := viper.UnmarshalKey("s3", &cfg.S3); err != nil {
			return fmt.Errorf("config s3: %w", err)
		}

		// config and credential problems are fatal before any transfer
		if err := cfg.Validate(); err != nil {
			return err
		}

		cmd.SilenceUsage = true
		color.New(color.FgHiCyan, color.Bold).Fprintln(cmd.OutOrStdout(), version.ShortWithApp())

		provider, err := storage.NewS3Provider(&storage.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return err
		}

		pairs := make([]sync.Pair, len(cfg.Pairs))
		for i, p := range cfg.Pairs {
			pairs[i] = sync.Pair{LocalRoot: p.LocalRoot, RemotePrefix: p.RemotePrefix}
		}

		engine := sync.NewEngine(provider, pairs,
			sync.WithWorkers(cfg.Workers),
			sync.WithDryRun(cfg.DryRun),
		)

		if err := engine.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		slog.Info("run complete", "progress", engine.Progress().String())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.DetailedWithApp())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().IntP("workers", "w", 0, "Concurrent sync pairs (0 = default)")
	rootCmd.Flags().BoolP("dry-run", "n", false, "Plan and report totals without transferring")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "Config file path")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	logFile := config.DefaultLogPath

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	logger := slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".pairsync"))
		viper.AddConfigPath(filepath.Join(home, ".config", "pairsync"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read %q: %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	viper.BindPFlag("dry_run", cmd.Flags().Lookup("dry-run"))

	viper.SetDefault("provider", config.ProviderS3)

	viper.SetEnvPrefix("PAIRSYNC")
	viper.AutomaticEnv()

	return nil
}
