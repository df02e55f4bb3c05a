package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	flatgeobuf "github.com/tingold/fgbstream"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <path|url>",
		Short: "Print the header of a container",
		Long: `Info prints the header of a FlatGeobuf container. For URLs only the
magic bytes and the header are fetched, and the number of bytes requested
is reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.openLayer(cmd.Context(), args[0], false)
			if err != nil {
				return err
			}

			h := l.Header()
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "name:\t%s\n", h.Name)
			if h.Description != "" {
				fmt.Fprintf(tw, "description:\t%s\n", h.Description)
			}
			fmt.Fprintf(tw, "geometry type:\t%s\n", h.GeometryType)
			fmt.Fprintf(tw, "features:\t%d\n", h.FeaturesCount)
			fmt.Fprintf(tw, "index node size:\t%d\n", h.IndexNodeSize)
			if len(h.Envelope) == 4 {
				fmt.Fprintf(tw, "envelope:\t%g %g %g %g\n", h.Envelope[0], h.Envelope[1], h.Envelope[2], h.Envelope[3])
			}
			fmt.Fprintf(tw, "columns:\t%s\n", columnSummary(h.Columns))
			if remote, ok := l.(*flatgeobuf.RemoteReader); ok {
				fmt.Fprintf(tw, "bytes requested:\t%d\n", remote.BytesRequested())
			}
			return tw.Flush()
		},
	}
}
