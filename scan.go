package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/entro314-labs/spacemap/internal/config"
	"github.com/entro314-labs/spacemap/internal/logging"
	"github.com/entro314-labs/spacemap/internal/session"
)

// progressInterval is how often a running crawl is polled and redrawn.
const progressInterval = 100 * time.Millisecond

type scanStartedMsg struct {
	ID      int
	Session *session.Session
	Err     error
}

type scanTickMsg struct {
	ID int
}

type scanPulseMsg struct{}

func scanStartCmd(ctx context.Context, root string, cfg config.Config, id int) tea.Cmd {
	return func() tea.Msg {
		s, err := session.Start(ctx, root, 0, cfg, session.WithLogger(logging.L()))
		return scanStartedMsg{ID: id, Session: s, Err: err}
	}
}

func scanTickCmd(id int) tea.Cmd {
	return tea.Tick(progressInterval, func(time.Time) tea.Msg {
		return scanTickMsg{ID: id}
	})
}

func scanPulseCmd() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg {
		return scanPulseMsg{}
	})
}
