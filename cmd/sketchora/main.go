// Command sketchora converts Autodesk Sketchbook multi-layer TIFF files
// into Open Raster (.ora) archives.
//
// Usage:
//
//	sketchora convert sketch.tif            # writes sketch.ora next to it
//	sketchora convert -o out.ora sketch.tif
//	sketchora convert drawings/             # converts every .tif in the tree
//	sketchora inspect sketch.tif            # prints the layer stack
package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sketchlab/sketchora"
	"github.com/sketchlab/sketchora/internal/parallel"
	"github.com/sketchlab/sketchora/sbtiff"
)

var version = "dev"

var log = logrus.New()

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var quiet, verbose bool

	cmd := &cobra.Command{
		Use:           "sketchora",
		Short:         "Convert Sketchbook multi-layer TIFF files to Open Raster",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetOutput(os.Stderr)
			log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
			switch {
			case quiet:
				log.SetLevel(logrus.ErrorLevel)
			case verbose:
				log.SetLevel(logrus.DebugLevel)
			default:
				log.SetLevel(logrus.InfoLevel)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only report errors")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "report per-layer detail")

	cmd.AddCommand(newConvertCommand())
	cmd.AddCommand(newInspectCommand())

	return cmd
}

func newConvertCommand() *cobra.Command {
	var (
		output  string
		force   bool
		workers int
	)

	cmd := &cobra.Command{
		Use:   "convert <file|dir>...",
		Short: "Convert Sketchbook TIFF files to .ora archives",
		Long: `Convert one or more Sketchbook TIFF files to Open Raster archives.
Directory arguments are walked recursively for .tif and .tiff files.
Each output is written next to its input with the extension replaced
by .ora, unless -o names an explicit output for a single input file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parallel.Workers = workers

			inputs, err := collectInputs(args)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no .tif or .tiff files found")
			}
			if output != "" && len(inputs) != 1 {
				return fmt.Errorf("-o requires exactly one input file, got %d", len(inputs))
			}

			// A failed file does not stop the batch; the exit status
			// reflects whether every file converted.
			failed := 0
			for _, in := range inputs {
				out := output
				if out == "" {
					out = strings.TrimSuffix(in, filepath.Ext(in)) + ".ora"
				}
				if err := convertFile(in, out, force); err != nil {
					log.WithField("file", in).WithError(err).Error("conversion failed")
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(inputs))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (single input only)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing output files")
	cmd.Flags().IntVarP(&workers, "workers", "j", 0, "decode worker count (0 = all CPUs)")

	return cmd
}

// collectInputs expands the argument list into concrete TIFF paths.
// Explicit file arguments are taken as given; directories are walked for
// .tif and .tiff extensions.
func collectInputs(args []string) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			inputs = append(inputs, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".tif", ".tiff":
				inputs = append(inputs, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return inputs, nil
}

// convertFile converts one TIFF. The archive is staged in a temporary
// file beside the target and renamed into place on success, so an
// interrupted run never leaves a truncated .ora behind.
func convertFile(in, out string, force bool) error {
	if !force {
		if _, err := os.Stat(out); err == nil {
			return fmt.Errorf("%s exists (use --force to overwrite)", out)
		}
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), filepath.Base(out)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	report, err := sketchora.ConvertTo(tmp, data)
	if err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return err
	}

	for _, w := range report.Warnings {
		log.WithField("file", in).Warn(w)
	}
	log.WithFields(logrus.Fields{
		"file":   in,
		"output": out,
		"size":   fmt.Sprintf("%dx%d", report.Width, report.Height),
		"layers": report.LayerCount,
	}).Info("converted")

	return nil
}

func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the layer stack of a Sketchbook TIFF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return inspect(cmd, data)
		},
	}
	return cmd
}

// inspect prints the canvas geometry and the layer table, bottom first,
// without decoding any pixels.
func inspect(cmd *cobra.Command, data []byte) error {
	f, err := sbtiff.Parse(data)
	if err != nil {
		return err
	}

	var composite *sbtiff.IFD
	for _, ifd := range f.IFDs {
		if sbtiff.IsComposite(ifd) || sbtiff.HasLayerTable(ifd) {
			composite = ifd
			break
		}
	}
	if composite == nil {
		return sbtiff.ErrNoLayerTable
	}

	w, h, err := composite.Dimensions()
	if err != nil {
		return err
	}
	table, err := sbtiff.DecodeLayerTable(f, composite)
	if err != nil {
		return err
	}

	flavor := "TIFF"
	if f.BigTIFF() {
		flavor = "BigTIFF"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %dx%d, %d layers\n", flavor, w, h, len(table.Layers))

	if a, r, g, b, ok := sbtiff.Background(composite); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "background #%02x%02x%02x alpha %d\n", r, g, b, a)
	}

	for i, l := range table.Layers {
		vis := "visible"
		if !l.Visible {
			vis = "hidden"
		}
		op, _ := l.Mode.CompositeOp()
		fmt.Fprintf(cmd.OutOrStdout(), "%3d  %-16q %7.1f%%  %-7s %-18s at (%d, %d)\n",
			i, l.Name, l.Opacity*100, vis, op, l.X, l.Y)
	}

	for _, warn := range append(f.Warnings, table.Warnings...) {
		log.Warn(warn)
	}
	return nil
}
