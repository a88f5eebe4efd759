package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/depstamp/depstamp/internal/cli/config"
	"github.com/depstamp/depstamp/internal/exe"
	"github.com/depstamp/depstamp/internal/inventory"
	"github.com/depstamp/depstamp/pkg/audit"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// scanResult pairs a binary with its extracted audit document.
type scanResult struct {
	path string
	info *audit.Info
}

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	var find string

	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "Scan a directory of binaries into the inventory",
		Long: `Walk a directory tree, extract audit data from every executable that
carries it, and record the results in the local inventory database.
Files without audit data are skipped silently.

With --find, query the inventory for a package name instead of scanning.`,
		Example: `  # Record every auditable binary under /usr/local/bin
  depstamp scan /usr/local/bin

  # Which scanned binaries contain libfoo, at any version?
  depstamp scan --find libfoo`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())

			if find != "" {
				return findPackage(cmd, cfg.InventoryPath, find)
			}
			if len(args) != 1 {
				return fmt.Errorf("a directory to scan is required unless --find is given")
			}
			return scanDir(cmd, cfg.InventoryPath, args[0])
		},
	}

	cmd.Flags().StringVar(&find, "find", "", "Query the inventory for a package name")

	return cmd
}

func scanDir(cmd *cobra.Command, inventoryPath, dir string) error {
	logger := config.Logger(cmd.Context())

	var candidates []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			candidates = append(candidates, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	// Extraction is pure and per-file, so binaries are read in parallel;
	// results are ordered afterwards for stable output.
	var (
		mu      sync.Mutex
		results []scanResult
	)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, path := range candidates {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			info, err := exe.ExtractFile(path)
			if err != nil {
				// Most files in a tree are not auditable binaries.
				if errors.Is(err, exe.ErrNotAnExecutable) || errors.Is(err, exe.ErrNoAuditData) {
					return nil
				}
				logger.Warn("skipping unreadable audit data", "path", path, "error", err)
				return nil
			}
			mu.Lock()
			results = append(results, scanResult{path: path, info: info})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].path < results[j].path })

	store, err := inventory.Open(inventoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, r := range results {
		if err := store.SaveScan(r.path, r.info); err != nil {
			return fmt.Errorf("failed to record %s: %w", r.path, err)
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Binary", "Packages", "Root"})
	for _, r := range results {
		root, _ := r.info.Root()
		t.AppendRow(table.Row{r.path, len(r.info.Packages), fmt.Sprintf("%s %s", root.Name, root.Version)})
	}
	t.Render()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d of %d files into %s\n",
		len(results), len(candidates), inventoryPath)
	return nil
}

func findPackage(cmd *cobra.Command, inventoryPath, name string) error {
	store, err := inventory.Open(inventoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	occurrences, err := store.FindPackage(name)
	if err != nil {
		return err
	}
	if len(occurrences) == 0 {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No scanned binary contains %q\n", name)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Binary", "Version", "Kind"})
	for _, o := range occurrences {
		t.AppendRow(table.Row{o.BinaryPath, o.Version, string(o.Kind)})
	}
	t.Render()
	return nil
}
