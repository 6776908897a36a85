package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/suiteloader/internal/item"
	"github.com/zjrosen/suiteloader/internal/log"
	"github.com/zjrosen/suiteloader/internal/metadata"
	"github.com/zjrosen/suiteloader/internal/presentation"
	"github.com/zjrosen/suiteloader/internal/store"
)

var (
	listJSON   bool
	listKind   string
	listStored bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Load the projects directory and list every built item",
	Long: `Load every item definition below the projects directory and list the
items that could be built, followed by the ids that are referenced but not
provided by any file.

With "watch: true" in the config the table listing keeps running and prints
one line per change, like the watch command. JSON output is always a single
snapshot.

With --stored the item store is listed instead, without loading any file. It
holds the items of every projects directory loaded against it.

Examples:
  suiteloader list
  suiteloader list --kind ExecutableTestSuite
  suiteloader list --stored --json
  suiteloader list --json | jq '.unresolved'`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runList(ctx, cmd.OutOrStdout())
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	listCmd.Flags().StringVarP(&listKind, "kind", "k", "", "Only list items of this kind (e.g., Tag)")
	listCmd.Flags().BoolVar(&listStored, "stored", false, "List the item store instead of loading files")
	rootCmd.AddCommand(listCmd)
}

func runList(ctx context.Context, out io.Writer) error {
	if listKind != "" && !isKind(listKind) {
		return fmt.Errorf("unknown kind %q, expected one of %v", listKind, metadata.Kinds)
	}
	if listStored {
		return listStoredItems(ctx, out)
	}

	watch := cfg.Watch && !listJSON
	s, err := openSession(ctx, watch)
	if err != nil {
		return err
	}
	defer s.close()

	if watch {
		return follow(ctx, s, out, listKind)
	}

	dto := filterKind(presentation.FromSnapshot(s.catalog.Snapshot()), listKind)
	formatter := presentation.NewFormatter(out)
	if listJSON {
		return formatter.FormatJSON(dto)
	}
	return formatter.FormatCatalog(dto)
}

func listStoredItems(ctx context.Context, out io.Writer) error {
	if cfg.Store.Path == "" {
		return errors.New("no item store configured (set store.path or --store)")
	}
	db, err := store.NewDB(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening item store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.ErrorErr(log.CatStore, "Closing item store", err)
		}
	}()

	items := db.Items(cfg.Store.CacheTTL)
	var recs []*store.Record
	if listKind != "" {
		recs, err = items.ListByKind(ctx, item.Kind(listKind))
	} else {
		recs, err = items.List(ctx)
	}
	if err != nil {
		return err
	}

	dto := presentation.FromRecords(recs)
	formatter := presentation.NewFormatter(out)
	if listJSON {
		return formatter.FormatJSON(dto)
	}
	return formatter.FormatCatalog(dto)
}

// filterKind keeps the items of kind. An empty kind keeps everything.
func filterKind(dto presentation.CatalogDTO, kind string) presentation.CatalogDTO {
	if kind == "" {
		return dto
	}
	filtered := make([]presentation.ItemDTO, 0, len(dto.Items))
	for _, it := range dto.Items {
		if it.Kind == kind {
			filtered = append(filtered, it)
		}
	}
	dto.Items = filtered
	return dto
}

func isKind(s string) bool {
	for _, k := range metadata.Kinds {
		if string(k) == s {
			return true
		}
	}
	return false
}
