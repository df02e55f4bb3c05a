package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"
	"github.com/zeebo/blake3"

	flatgeobuf "github.com/tingold/fgbstream"
)

type convertFlags struct {
	name          string
	description   string
	envelope      bool
	legacyBoolPad bool
}

func newConvertCmd(a *app) *cobra.Command {
	var f convertFlags

	cmd := &cobra.Command{
		Use:   "convert <in.geojson[.gz|.zst]> <out.fgb>",
		Short: "Convert a GeoJSON FeatureCollection to FlatGeobuf",
		Long: `Convert reads a GeoJSON FeatureCollection, optionally gzip or zstd
compressed, infers a column schema from its properties and writes a
FlatGeobuf container. The BLAKE3 digest of the output is logged.

Examples:
  fgb convert cities.geojson cities.fgb --envelope
  fgb convert roads.geojson.zst roads.fgb --name roads`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("envelope") {
				f.envelope = a.cfg.Write.Envelope
			}
			if !cmd.Flags().Changed("legacy-bool-pad") {
				f.legacyBoolPad = a.cfg.Write.LegacyBoolPad
			}
			return a.convert(args[0], args[1], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.name, "name", "", "layer name (default: input file name)")
	flags.StringVar(&f.description, "description", "", "layer description")
	flags.BoolVar(&f.envelope, "envelope", false, "write the bounding box of all features into the header")
	flags.BoolVar(&f.legacyBoolPad, "legacy-bool-pad", false, "pad every Bool property value with a zero byte")
	return cmd
}

func (a *app) convert(in, out string, f convertFlags) error {
	fc, err := readFeatureCollection(in)
	if err != nil {
		return err
	}

	name := f.name
	if name == "" {
		name = layerName(in)
	}
	opts := &flatgeobuf.Options{
		Name:          name,
		Description:   f.description,
		Envelope:      f.envelope,
		LegacyBoolPad: f.legacyBoolPad,
	}

	file, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	hasher := blake3.New()
	if err := flatgeobuf.WriteFeatures(io.MultiWriter(file, hasher), fc, opts); err != nil {
		file.Close()
		os.Remove(out)
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", out, err)
	}

	a.logger.Info("container written",
		"path", out,
		"layer", name,
		"features", len(flatgeobuf.WritableFeatures(fc)),
		"bytes", info.Size(),
		"blake3", hex.EncodeToString(hasher.Sum(nil)),
	)
	return nil
}

// readFeatureCollection reads a GeoJSON FeatureCollection, decompressing
// .gz and .zst inputs.
func readFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r io.Reader = file
	switch filepath.Ext(path) {
	case ".gz":
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	case ".zst":
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream %s: %w", path, err)
		}
		defer dec.Close()
		r = dec
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return fc, nil
}

// layerName derives a layer name from a file name by dropping every
// extension: roads.geojson.zst becomes roads.
func layerName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}
