package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/presentation"
	"github.com/zjrosen/suiteloader/internal/registry"
	"github.com/zjrosen/suiteloader/internal/store"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one item as JSON",
	Long: `Load the projects directory and print the item with the given id.

With a store configured the persisted record is printed, including its
creation and update times. Without one the built item itself is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := eid.New(args[0])
		if err != nil {
			return err
		}

		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.close()

		formatter := presentation.NewFormatter(cmd.OutOrStdout())
		if s.items != nil {
			rec, err := s.items.FindByID(cmd.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("item %s not found", id)
			}
			if err != nil {
				return err
			}
			return formatter.FormatJSON(presentation.FromRecord(rec))
		}

		it, err := s.catalog.Get(id)
		if errors.Is(err, registry.ErrNotFound) {
			return fmt.Errorf("item %s not found", id)
		}
		if err != nil {
			return err
		}
		return formatter.FormatJSON(it)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
