package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/entro314-labs/spacemap/internal/core"
	"github.com/entro314-labs/spacemap/internal/logging"
	"github.com/entro314-labs/spacemap/internal/metrics"
	"github.com/entro314-labs/spacemap/internal/session"
)

var scanFlags struct {
	top         int
	metricsAddr string
	quiet       bool
}

var scanCmd = &cobra.Command{
	Use:   "scan [PATH]",
	Short: "Crawl without the UI and print the largest entries",
	Long: `scan crawls PATH like the interactive view does, prints progress on
stderr and finishes with a table of the largest entries directly below PATH.

With --metrics-addr the crawl metrics are served in the Prometheus text
format while the scan runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVarP(&scanFlags.top, "top", "n", 20, "Number of entries to list")
	scanCmd.Flags().StringVar(&scanFlags.metricsAddr, "metrics-addr", "", "Serve /metrics on this address during the scan")
	scanCmd.Flags().BoolVarP(&scanFlags.quiet, "quiet", "q", false, "Do not print progress")
}

func runScan(cmd *cobra.Command, args []string) error {
	root, err := rootArg(args)
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(cmd, root)
	if err != nil {
		return err
	}
	if cfg.Log.OutputPath == "off" && cmd.Flags().Changed("log-level") {
		cfg.Log.OutputPath = "stderr"
	}
	if err := logging.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	if scanFlags.metricsAddr != "" {
		stop, err := serveMetrics(scanFlags.metricsAddr, reg)
		if err != nil {
			return err
		}
		defer stop()
	}

	ctx := cmd.Context()
	s, err := session.Start(ctx, root, 0, cfg,
		session.WithLogger(logging.L()),
		session.WithRegistry(reg),
	)
	if err != nil {
		return err
	}

	if !scanFlags.quiet {
		watchProgress(ctx, cmd.ErrOrStderr(), s)
	}
	if err := s.Wait(); err != nil {
		return err
	}
	return writeReport(cmd.OutOrStdout(), s.Stats(), s.Preview(scanFlags.top))
}

// serveMetrics listens on addr before returning so a bad address fails the
// command instead of a background goroutine.
func serveMetrics(addr string, g prometheus.Gatherer) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Warn("metrics server", logging.Err(err))
		}
	}()
	logging.L().Info("serving metrics", logging.String("addr", ln.Addr().String()))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// watchProgress redraws one progress line on w until the crawl ends.
func watchProgress(ctx context.Context, w io.Writer, s *session.Session) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.Done():
			fmt.Fprintf(w, "\r%s\n", progressLine(s.Progress()))
			return
		case <-ctx.Done():
			// The session notices the same cancellation; wait for it.
			<-s.Done()
			fmt.Fprintf(w, "\r%s\n", progressLine(s.Progress()))
			return
		case <-ticker.C:
			fmt.Fprintf(w, "\r%s", progressLine(s.Progress()))
		}
	}
}

func progressLine(p session.Progress) string {
	line := fmt.Sprintf("%d entries · %s · %d errors · %s",
		p.Entries, core.FormatSize(p.Bytes), p.Errors, p.Elapsed.Truncate(100*time.Millisecond))
	if p.Cancelled {
		line += " · cancelled"
	}
	return line
}

var reportStyles = struct {
	header lipgloss.Style
	cell   lipgloss.Style
	right  lipgloss.Style
	err    lipgloss.Style
	border lipgloss.Style
}{
	header: lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).Padding(0, 1),
	cell:   lipgloss.NewStyle().Padding(0, 1),
	right:  lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right),
	err:    lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("203")),
	border: lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
}

func writeReport(w io.Writer, st session.Stats, top []session.PreviewEntry) error {
	summary := fmt.Sprintf("%s\n%d files · %d dirs · %s in %s",
		st.Root, st.Files, st.Dirs, core.FormatSize(st.Bytes), st.Duration.Truncate(time.Millisecond))
	if st.Errors > 0 {
		summary += fmt.Sprintf(" · %d unreadable", st.Errors)
	}
	if st.Cancelled {
		summary += " · cancelled, totals are partial"
	}

	rows := make([][]string, 0, len(top))
	failed := map[int]bool{}
	for i, e := range top {
		name := e.Name
		if e.Kind == core.Dir {
			name += "/"
		}
		if e.Err {
			failed[i] = true
			name += " (incomplete)"
		}
		rows = append(rows, []string{
			core.FormatSize(e.Size),
			share(e.Size, st.Bytes),
			categoryOf(e.Name, e.Kind),
			name,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(reportStyles.border).
		Headers("SIZE", "SHARE", "KIND", "NAME").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return reportStyles.header
			case failed[row]:
				return reportStyles.err
			case col < 2:
				return reportStyles.right
			default:
				return reportStyles.cell
			}
		})

	_, err := fmt.Fprintf(w, "%s\n%s\n", summary, t.Render())
	return err
}

func share(size, total int64) string {
	if total <= 0 {
		return "-"
	}
	return strconv.FormatFloat(float64(size)*100/float64(total), 'f', 1, 64) + "%"
}
