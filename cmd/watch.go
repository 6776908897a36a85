package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/suiteloader/internal/log"
	"github.com/zjrosen/suiteloader/internal/presentation"
)

var watchLogs bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Load the projects directory and stream item changes",
	Long: `Load the projects directory, print the initial listing and then keep the
catalog current, printing one line per created, updated or deleted item until
interrupted.

Examples:
  suiteloader watch
  suiteloader watch --debug --logs   # also stream log lines`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runWatch(ctx, cmd.OutOrStdout())
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchLogs, "logs", false, "Also print log lines (requires --debug)")
	rootCmd.AddCommand(watchCmd)
}

// runWatch streams catalog changes to out until ctx is done.
func runWatch(ctx context.Context, out io.Writer) error {
	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.close()
	return follow(ctx, s, out, "")
}

// follow prints the listing of kind ("" for all kinds) and then one line per
// change of that kind until ctx is done.
func follow(ctx context.Context, s *session, out io.Writer, kind string) error {
	// Subscribe before printing so no change is missed
	changes := s.catalog.Subscribe(ctx)
	var logs <-chan log.LogEvent
	if watchLogs {
		logs = log.Subscribe(ctx)
	}

	formatter := presentation.NewFormatter(out)
	if err := formatter.FormatCatalog(filterKind(presentation.FromSnapshot(s.catalog.Snapshot()), kind)); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", s.catalog.Dir())

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-changes:
			if !ok {
				return nil
			}
			if kind != "" && string(ev.Payload.Kind) != kind {
				continue
			}
			if err := formatter.FormatChange(ev); err != nil {
				return err
			}
		case ev, ok := <-logs:
			if !ok {
				logs = nil
				continue
			}
			_, _ = fmt.Fprint(os.Stderr, ev.Payload)
		}
	}
}
