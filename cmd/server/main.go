package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/skywriter/internal/server"
	"github.com/openmined/skywriter/internal/utils"
	"github.com/openmined/skywriter/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SKYWRITER"

var (
	logLevel = new(slog.LevelVar)

	// SKYWRITER_STORAGE_S3_BUCKET maps onto storage.s3.bucket
	envReplacer = strings.NewReplacer(".", "_")
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "skywriter-server",
		Short:   "Skywriter remote store",
		Version: version.Detailed(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			level, _ := server.ParseLogLevel(cfg.LogLevel)
			logLevel.Set(level)
			cmd.SilenceUsage = true

			slog.Info("skywriter server",
				"version", version.Short(),
				"addr", cfg.HTTP.Addr,
				"tls", cfg.HTTP.TLS(),
				"storage", cfg.Storage.Backend,
				"auth", cfg.Auth.Enabled,
				"secret", utils.MaskSecret(cfg.Auth.Secret),
			)
			if !cfg.Auth.Enabled {
				slog.Warn("auth disabled, every request is accepted")
			}

			srv, err := server.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer slog.Info("Bye!")
			return srv.Start(cmd.Context())
		},
	}

	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	rootCmd.Flags().String("cert", "", "Path to the certificate file")
	rootCmd.Flags().StringP("key", "k", "", "Path to the key file")
	rootCmd.Flags().StringP("root", "r", "", "Storage root for the fs backend")
	rootCmd.Flags().String("log-level", "info", "debug, info, warn or error")
	rootCmd.Flags().StringP("config", "f", "", "Config file (toml, yaml or json)")

	return rootCmd
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	logLevel.Set(slog.LevelInfo)
	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevel,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges, lowest first: defaults, the config file, SKYWRITER_*
// environment variables and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	v := viper.New()

	if f := cmd.Flag("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config read '%s': %w", f.Value.String(), err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
			}
		}
	}

	v.SetDefault("http.addr", server.DefaultAddr)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("http.rate_limit", server.DefaultRateLimit)
	v.SetDefault("storage.backend", "fs")
	v.SetDefault("storage.root", "")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.secret", "")
	v.SetDefault("log_level", "info")

	bindFlag(v, "http.addr", cmd.Flags().Lookup("bind"))
	bindFlag(v, "http.cert_file", cmd.Flags().Lookup("cert"))
	bindFlag(v, "http.key_file", cmd.Flags().Lookup("key"))
	bindFlag(v, "storage.root", cmd.Flags().Lookup("root"))
	bindFlag(v, "log_level", cmd.Flags().Lookup("log-level"))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	cfg := &server.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
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
