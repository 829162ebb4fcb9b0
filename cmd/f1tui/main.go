package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mohammed-shakir/f1-stats-cache/internal/app"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/config"
	"github.com/mohammed-shakir/f1-stats-cache/internal/logger"
	"github.com/mohammed-shakir/f1-stats-cache/internal/query"
	"github.com/mohammed-shakir/f1-stats-cache/internal/tui"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a TOML config file (defaults to $F1_CONFIG)")
	logPath := flag.String("log", "", "write logs to this file (the terminal is owned by the UI)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	var out io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log: %v\n", err)
			return 2
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		SampleN:   cfg.LogSampleN,
		Service:   "f1tui",
		Component: "tui",
	}, out)
	appLog := logger.NewSlog(&zl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := app.Build(ctx, cfg, appLog)
	defer func() { _ = st.Close() }()

	sess := query.NewSession(ctx, st.Service, query.Options{
		Debounce:  cfg.DebounceWindow,
		Policy:    st.Policy,
		CacheSize: 64,
		Logger:    appLog,
	})
	defer sess.Close()

	if _, err := tea.NewProgram(tui.New(sess), tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui: %v\n", err)
		return 1
	}
	return 0
}
