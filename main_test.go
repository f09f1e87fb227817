package main

import "testing"

func TestParseCLIFlagsDefaults(t *testing.T) {
	opts, err := parseCLIFlags(nil)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if opts.configPath != "config.toml" {
		t.Fatalf("default config path = %s", opts.configPath)
	}
	if opts.checkOnly || opts.showVersion {
		t.Fatalf("unexpected flags: %+v", opts)
	}
}

func TestParseCLIFlagsExplicitConfig(t *testing.T) {
	opts, err := parseCLIFlags([]string{"-config", "/etc/packserve.toml", "-check-config"})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if opts.configPath != "/etc/packserve.toml" {
		t.Fatalf("config path = %s", opts.configPath)
	}
	if !opts.checkOnly {
		t.Fatalf("check-config flag lost")
	}
}

func TestParseCLIFlagsEnvFallback(t *testing.T) {
	t.Setenv("PACKSERVE_CONFIG", "/opt/conf.toml")

	opts, err := parseCLIFlags(nil)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if opts.configPath != "/opt/conf.toml" {
		t.Fatalf("env fallback ignored: %s", opts.configPath)
	}

	// 显式 flag 优先于环境变量。
	opts, err = parseCLIFlags([]string{"-config", "cli.toml"})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if opts.configPath != "cli.toml" {
		t.Fatalf("flag must override env: %s", opts.configPath)
	}
}

func TestParseCLIFlagsRejectsUnknown(t *testing.T) {
	if _, err := parseCLIFlags([]string{"-bogus"}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}
