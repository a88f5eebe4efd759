package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/depstamp/depstamp/internal/cli/config"
	"github.com/depstamp/depstamp/internal/graph"
	"github.com/depstamp/depstamp/internal/lockfile"
	"github.com/depstamp/depstamp/pkg/audit"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// NewConvertCommand creates the convert command.
func NewConvertCommand() *cobra.Command {
	var (
		format  string
		outPath string
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "convert <input>",
		Short: "Convert a lock file or rich dependency graph into an audit document",
		Long: `Convert a build-tool dependency description into the compact audit form.

Two input formats are supported:
  lock   a TOML lock file ([[package]] entries with a dependency list)
  graph  a rich graph JSON document ({"nodes": [...], "edges": [...]})

The input is deduplicated, classified, pruned of development-only
dependencies and topologically ordered; equal inputs always produce
byte-identical output.`,
		Example: `  # Convert a lock file, writing JSON to stdout
  depstamp convert app.lock

  # Convert a rich graph and keep regenerating on change
  depstamp convert --format graph --watch -o audit.json graph.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return watchConvert(cmd, args[0], format, outPath)
			}
			return convertOnce(cmd, args[0], format, outPath)
		},
	}

	cmd.Flags().StringVar(&format, "format", "auto", "Input format (auto|lock|graph)")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the document to a file instead of stdout")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-run the conversion whenever the input changes")

	return cmd
}

func convertOnce(cmd *cobra.Command, input, format, outPath string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	info, err := convertData(data, format, input)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
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
}

// convertData runs the pipeline appropriate for the detected input format.
func convertData(data []byte, format, path string) (*audit.Info, error) {
	switch detectFormat(format, path) {
	case "lock":
		return lockfile.Convert(data)
	case "graph":
		rich, err := graph.ParseRich(data)
		if err != nil {
			return nil, err
		}
		return graph.Convert(rich)
	default:
		return nil, fmt.Errorf("unknown input format %q (want lock or graph)", format)
	}
}

// detectFormat resolves "auto" from the file extension. Lock files win when
// the extension is unknown, since they are the common case.
func detectFormat(format, path string) string {
	if format != "" && format != "auto" {
		return format
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "graph"
	default:
		return "lock"
	}
}

// watchConvert runs the conversion once, then again on every change to the
// input file until the command context is canceled. Conversion failures are
// logged, not fatal: a half-written input should not kill the watch loop.
func watchConvert(cmd *cobra.Command, input, format, outPath string) error {
	logger := config.Logger(cmd.Context())

	if err := convertOnce(cmd, input, format, outPath); err != nil {
		logger.Error("conversion failed", "input", input, "error", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory rather than the file: editors and build tools
	// typically replace files by rename, which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(input)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(input), err)
	}

	target, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	logger.Info("watching for changes", "input", input)
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			changed, err := filepath.Abs(ev.Name)
			if err != nil || changed != target {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			if err := convertOnce(cmd, input, format, outPath); err != nil {
				logger.Error("conversion failed", "input", input, "error", err)
			} else {
				logger.Info("converted", "input", input)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error", "error", err)
		}
	}
}
