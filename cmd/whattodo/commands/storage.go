package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewStorageCommand groups whole-document storage operations.
func NewStorageCommand(opts *rootOptions) *cobra.Command {
	storageCmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect, export, import and clear the stored document",
	}

	storageCmd.AddCommand(&cobra.Command{
		Use:   "usage",
		Short: "Print how much of the storage quota the document uses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				snap := a.documents.Snapshot()
				fmt.Fprintf(out(cmd), "backend: %s\n", a.cfg.Storage.Backend)
				fmt.Fprintf(out(cmd), "usage: %.1f%% of %d bytes\n", snap.UsageRatio*100, a.cfg.Storage.QuotaBytes)
				fmt.Fprintf(out(cmd), "tasks: %d\n", snap.Document.TaskCount())
				fmt.Fprintf(out(cmd), "labels: %d\n", len(snap.Document.Labels))
				return nil
			})
		},
	})

	storageCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Reset the document to the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				_, err := a.documents.Clear(ctx)
				return err
			})
		},
	})

	var outFile string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the document as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				w := out(cmd)
				if outFile != "" {
					f, err := os.Create(outFile)
					if err != nil {
						return fmt.Errorf("failed to create export file: %w", err)
					}
					defer f.Close()
					w = f
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(a.documents.Snapshot().Document)
			})
		},
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "export file (default stdout)")

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the document with a JSON export; use - for stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readJSON(cmd, args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				doc, err := a.documents.Upload(ctx, raw)
				if err != nil {
					return err
				}
				fmt.Fprintf(out(cmd), "imported %d tasks and %d labels\n", doc.TaskCount(), len(doc.Labels))
				return nil
			})
		},
	}

	storageCmd.AddCommand(exportCmd, importCmd)
	return storageCmd
}

func readJSON(cmd *cobra.Command, path string) (any, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var raw any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse import file: %w", err)
	}
	return raw, nil
}
