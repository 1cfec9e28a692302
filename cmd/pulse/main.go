package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/client/app"
	"github.com/pulse-ai/pulse/internal/client/config"
	"github.com/pulse-ai/pulse/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "path to a config.yaml (optional)")
	noAltScreen := flag.Bool("no-alt-screen", false, "render inline instead of the alternate screen")
	flag.Parse()

	_ = godotenv.Load()

	if err := run(*configPath, *noAltScreen); err != nil {
		fmt.Fprintln(os.Stderr, "pulse:", err)
		os.Exit(1)
	}
}

func run(configPath string, noAltScreen bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := app.New(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	model := tui.New(tui.Config{
		Auth:    client.Identity,
		Mood:    client.Mood,
		Chat:    client.Chat,
		Insight: client.Insight,
		Events:  client.Gateway.SubscribeEvents,
		Logger:  logger,
	})

	var opts []tea.ProgramOption
	if !noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if _, err := tea.NewProgram(model, opts...).Run(); err != nil {
		logger.Error("program exited", zap.Error(err))
		return err
	}
	return nil
}
