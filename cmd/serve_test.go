package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestExecuteUnknownCommand(t *testing.T) {
	if err := Execute(context.Background(), []string{"deploy"}); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}

func TestHelp(t *testing.T) {
	if err := Execute(context.Background(), []string{"help", "serve"}); err != nil {
		t.Fatalf("help serve: %v", err)
	}
	if err := Execute(context.Background(), []string{"help", "deploy"}); err == nil {
		t.Fatalf("expected error for help on unknown command")
	}
}

func TestParseServeFlags(t *testing.T) {
	opts, err := parseServeFlags([]string{"--config", "gateway.yaml", "--port", "9090"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.configPath != "gateway.yaml" || opts.overridePort != 9090 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.envFile != defaultEnvFile || opts.envFileSet {
		t.Fatalf("env file should default silently, got %+v", opts)
	}

	opts, err = parseServeFlags([]string{"--env-file", "secrets.env"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.envFile != "secrets.env" || !opts.envFileSet {
		t.Fatalf("explicit env file not recorded: %+v", opts)
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(serveOptions{overridePort: 9191})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Fatalf("port override not applied: %d", cfg.Server.Port)
	}

	if _, err := loadConfig(serveOptions{overridePort: 70000}); err == nil {
		t.Fatalf("expected error for invalid port")
	}
	if _, err := loadConfig(serveOptions{configPath: filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "absent.env")

	if err := loadEnvFile(missing, false); err != nil {
		t.Fatalf("optional env file must be skipped: %v", err)
	}
	if err := loadEnvFile(missing, true); err == nil {
		t.Fatalf("explicit env file must exist")
	}

	path := filepath.Join(dir, "gateway.env")
	if err := os.WriteFile(path, []byte("FORMULA_GATEWAY_TEST_KEY=sk-from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("FORMULA_GATEWAY_TEST_KEY", "")
	os.Unsetenv("FORMULA_GATEWAY_TEST_KEY")

	if err := loadEnvFile(path, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("FORMULA_GATEWAY_TEST_KEY"); got != "sk-from-file" {
		t.Fatalf("env var: got %q", got)
	}
}
