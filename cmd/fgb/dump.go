package main

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"

	flatgeobuf "github.com/tingold/fgbstream"
)

func newDumpCmd(a *app) *cobra.Command {
	var (
		limit         int
		legacyBoolPad bool
	)

	cmd := &cobra.Command{
		Use:   "dump <path|url>",
		Short: "Print features as GeoJSON, one per line",
		Long: `Dump decodes features and writes each as a GeoJSON Feature on its own
line. Over HTTP, records are fetched as they are read, so --limit bounds
the bytes transferred.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := a.openLayer(ctx, args[0], legacyBoolPad)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(a.stdout)
			n := 0
			for limit <= 0 || n < limit {
				f, err := l.NextFeature(ctx)
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
				if err := enc.Encode(f); err != nil {
					return err
				}
				n++
			}

			attrs := []any{"features", n}
			if remote, ok := l.(*flatgeobuf.RemoteReader); ok {
				attrs = append(attrs, "bytes_requested", remote.BytesRequested())
			}
			a.logger.Info("dump complete", attrs...)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many features (0 means all)")
	cmd.Flags().BoolVar(&legacyBoolPad, "legacy-bool-pad", false, "decode Bool values written with a trailing pad byte")
	return cmd
}
