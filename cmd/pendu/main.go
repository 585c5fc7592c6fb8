package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cereales/pendu/internal/daemon"
	"github.com/cereales/pendu/pkg/scoreboard"
	"github.com/cereales/pendu/pkg/words"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Path to config file")
	profile := flag.String("profile", "", "Config profile to apply (e.g. dev, test)")
	debug := flag.Bool("debug", false, "Enable debug logs")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pendu %s (%s)\n", version, commit)
		os.Exit(0)
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	// Load config
	cp := *configPath
	if cp == "" {
		cp = os.Getenv("PENDU_CONFIG_PATH")
	}
	cfg, err := daemon.LoadConfig(cp, *profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %q: %v\n", cp, err)
		os.Exit(1)
	}

	// Logger; the console channel owns stdout
	var logOut io.Writer = os.Stdout
	if cfg.Console.Enabled {
		logOut = os.Stderr
	}
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level})))

	src, err := words.Load(cfg.Game.Dictionary,
		words.WithMinLength(orDefault(cfg.Game.MinWordLength, words.DefaultMinLength)),
		words.WithAttempts(orDefault(cfg.Game.WordAttempts, words.DefaultAttempts)),
	)
	if err != nil {
		slog.Error("failed to load dictionary", "path", cfg.Game.Dictionary, "error", err)
		os.Exit(1)
	}

	b, err := scoreboard.Open(cfg.Scoreboard.Path)
	if err != nil {
		slog.Error("failed to open scoreboard", "path", cfg.Scoreboard.Path, "error", err)
		os.Exit(1)
	}
	defer b.Close()

	slog.Info("pendu starting",
		"version", version,
		"profile", *profile,
		"scoreboard", b.Path(),
		"words", src.Len(),
	)

	d, err := daemon.New(cfg, b, src)
	if err != nil {
		slog.Error("failed to create daemon", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := d.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("daemon error", "error", err)
		b.Close()
		os.Exit(1)
	}

	slog.Info("pendu stopped", "errors", d.ErrorCount())
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
