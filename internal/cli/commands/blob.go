package commands

import (
	"fmt"
	"os"

	"github.com/depstamp/depstamp/internal/exe"
	"github.com/depstamp/depstamp/pkg/audit"
	"github.com/spf13/cobra"
)

// NewBlobCommand creates the blob command.
func NewBlobCommand() *cobra.Command {
	var (
		format  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "blob <input>",
		Short: "Produce the compressed blob a linker embeds into the binary",
		Long: `Compress an audit document into the blob that build tooling places in
the ` + exe.SectionName + ` linker section. The input may already be an audit
document, or a lock file / rich graph that is converted first.

depstamp only produces the bytes; placing them in the binary is the build
system's job.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var info *audit.Info
			if format == "audit" {
				info, err = audit.Unmarshal(data)
			} else {
				info, err = convertData(data, format, args[0])
			}
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			blob, err := exe.Encode(info)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, blob, 0o644); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d packages (%d bytes compressed) to %s\n",
				len(info.Packages), len(blob), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "audit", "Input format (audit|lock|graph)")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file for the compressed blob")

	return cmd
}
