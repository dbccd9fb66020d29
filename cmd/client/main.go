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

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/skywriter/internal/client"
	"github.com/openmined/skywriter/internal/client/config"
	"github.com/openmined/skywriter/internal/utils"
	"github.com/openmined/skywriter/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "SKYWRITER"
	configFileName = "config"
)

var (
	home, _  = os.UserHomeDir()
	logLevel = new(slog.LevelVar)
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "skywriter",
		Short:   "Skywriter keeps local files and a remote store in step",
		Version: version.Detailed(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				logLevel.Set(slog.LevelDebug)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// all good now, show header
			cmd.SilenceUsage = true
			showHeader(cmd, cfg)

			c, err := client.New(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			defer slog.Info("Bye!")
			return c.Run(cmd.Context())
		},
	}

	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("server", "s", config.DefaultServerURL, "Skywriter server url")
	rootCmd.Flags().String("secret", "", "Shared secret for the server")
	rootCmd.Flags().DurationP("interval", "i", 0, "Rerun passes on this interval, 0 runs a single pass")
	rootCmd.Flags().IntP("workers", "w", config.DefaultWorkers, "Concurrent transfers")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "Skywriter config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	logLevel.Set(slog.LevelInfo)
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevel,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	handler := slog.Handler(stdoutHandler)
	if file, err := openLogFile(config.DefaultLogPath); err != nil {
		fmt.Fprintf(os.Stderr, "log file disabled: %v\n", err)
	} else {
		defer file.Close()
		fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = utils.NewMultiLogHandler(stdoutHandler, fileHandler)
	}
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := utils.EnsureParent(path); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// loadConfig merges, lowest first: defaults, the config file, SKYWRITER_*
// environment variables and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	if f := cmd.Flag("config"); f != nil && f.Changed {
		v.SetConfigFile(f.Value.String())
	} else {
		v.AddConfigPath(config.DefaultConfigDir)
		v.AddConfigPath(filepath.Join(home, ".config", "skywriter"))
		v.SetConfigName(configFileName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	defaults := config.Default()
	v.SetDefault("server_url", defaults.ServerURL)
	v.SetDefault("secret", "")
	v.SetDefault("sync_interval", "0s")
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("tie_break", string(defaults.TieBreak))
	v.SetDefault("probe_policy", string(defaults.ProbePolicy))
	v.SetDefault("history_path", defaults.HistoryPath)
	v.SetDefault("ignore_file", defaults.IgnoreFile)

	bindFlag(v, "server_url", cmd.Flags().Lookup("server"))
	bindFlag(v, "secret", cmd.Flags().Lookup("secret"))
	bindFlag(v, "sync_interval", cmd.Flags().Lookup("interval"))
	bindFlag(v, "workers", cmd.Flags().Lookup("workers"))

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}

	cfg.Path = v.ConfigFileUsed()
	if cfg.Path == "" {
		cfg.Path = config.DefaultConfigPath
	}
	return cfg, nil
}

func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	if err := v.BindPFlag(key, flag); err != nil {
		slog.Debug("bind flag", "key", key, "error", err)
	}
}
