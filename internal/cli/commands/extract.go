package commands

import (
	"fmt"
	"os"

	"github.com/depstamp/depstamp/internal/exe"
	"github.com/depstamp/depstamp/pkg/audit"
	"github.com/spf13/cobra"
)

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	var (
		raw     bool
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "extract <binary>",
		Short: "Extract the audit document embedded in a compiled binary",
		Long: `Read the audit section out of an ELF, PE or Mach-O executable,
decompress it and print the validated audit document.

With --raw the compressed blob is written out unchanged, which requires
--out since it is not text.`,
		Example: `  # Print the audit document of a binary
  depstamp extract ./myservice

  # Dump the raw compressed blob
  depstamp extract --raw --out blob.zlib ./myservice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			blob, err := exe.ExtractRaw(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			if raw {
				if outPath == "" {
					return fmt.Errorf("--raw requires --out")
				}
				return os.WriteFile(outPath, blob, 0o644)
			}

			info, err := exe.Decode(blob)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			out, err := audit.Marshal(info)
			if err != nil {
				return err
			}

			if outPath == "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}
			return os.WriteFile(outPath, out, 0o644)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Write the compressed blob without decoding")
	cmd.Flags().StringVar(&outPath, "out", "", "Write to a file instead of stdout")

	return cmd
}
