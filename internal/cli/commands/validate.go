package commands

import (
	"fmt"
	"os"

	"github.com/depstamp/depstamp/pkg/audit"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate an audit document",
		Long: `Parse an audit JSON document and check every structural invariant:
dependency indices, root uniqueness, version syntax, and source and kind
tags. Exits non-zero if anything fails; there is no partial success.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			info, err := audit.Unmarshal(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			root, _ := info.Root()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "OK: %d packages, root %s %s\n",
				len(info.Packages), root.Name, root.Version)
			return nil
		},
	}
}
