package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zjrosen/suiteloader/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [projects-dir]",
	Short: "Write a project config file",
	Long: `Write .suiteloader/config.yaml in the current directory (or the file given
with --config) and point projects_dir at the given directory.`,
	Args: cobra.MaximumNArgs(1),
	// Runs without validating the current configuration
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.LookupPaths()[0]
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := config.WriteDefaultConfig(path); err != nil {
				return err
			}
		}

		if len(args) == 1 {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving %s: %w", args[0], err)
			}
			if err := config.SaveValue(path, "projects_dir", dir); err != nil {
				return err
			}
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
