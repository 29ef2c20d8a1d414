package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"formula-gateway/internal/config"
	"formula-gateway/internal/formula"
	providerfactory "formula-gateway/internal/provider/factory"
	"formula-gateway/internal/server"
)

const serveUsage = `Usage:
  formula-gateway serve [--config <path>] [--port <port>] [--env-file <path>]

Flags:
  --config   string   Path to YAML configuration file (built-in defaults when omitted)
  --port     int      Override server port from configuration
  --env-file string   Dotenv file with the upstream API key (default ".env", optional)`

const defaultEnvFile = ".env"

type serveOptions struct {
	configPath   string
	overridePort int
	envFile      string
	envFileSet   bool
}

func parseServeFlags(args []string) (serveOptions, error) {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var opts serveOptions
	flags.StringVar(&opts.configPath, "config", "", "path to configuration file")
	flags.IntVar(&opts.overridePort, "port", 0, "override server port")
	flags.StringVar(&opts.envFile, "env-file", defaultEnvFile, "dotenv file to load")

	if err := flags.Parse(args); err != nil {
		return serveOptions{}, err
	}
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "env-file" {
			opts.envFileSet = true
		}
	})
	return opts, nil
}

func loadConfig(opts serveOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if opts.overridePort != 0 {
		if opts.overridePort < 0 || opts.overridePort > 65535 {
			return config.Config{}, fmt.Errorf("port override %d must be a valid TCP port", opts.overridePort)
		}
		cfg.Server.Port = opts.overridePort
	}
	return cfg, nil
}

// loadEnvFile loads the dotenv file. The default file may be absent; an
// explicitly requested one may not.
func loadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	slog.Debug("loaded env file", "path", path)
	return nil
}

func configureLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func serve(ctx context.Context, args []string) error {
	opts, err := parseServeFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	configureLogging(cfg.Server.LogLevel)

	if err := loadEnvFile(opts.envFile, opts.envFileSet); err != nil {
		return err
	}
	if os.Getenv(cfg.Upstream.APIKeyEnv) == "" {
		slog.Warn("upstream API key is not set; model requests will fail", "env", cfg.Upstream.APIKeyEnv)
	}

	providers, err := providerfactory.NewProviders(cfg)
	if err != nil {
		return err
	}

	svc, err := formula.NewService(cfg, providers.Generator, providers.Assistant, formula.EnvCredentials{Var: cfg.Upstream.APIKeyEnv})
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, svc)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
