package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/keyfirm/internal/config"
	"github.com/dshills/keyfirm/internal/input/action"
	"github.com/dshills/keyfirm/internal/input/key"
)

// configArg lets a positional argument override --config.
func configArg(opts *options, args []string) {
	if len(args) == 1 {
		opts.configPath = args[0]
	}
}

// load reads, validates and builds the configuration.
func load(ctx context.Context, opts *options) (*config.Config, *config.Built, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	built, err := config.Build(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, built, nil
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config]",
		Short: "Check a keyboard configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configArg(opts, args)
			cfg, built, err := load(cmd.Context(), opts)
			if err != nil {
				return err
			}
			dims := cfg.Dimensions()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows, %d cols, %d layers, %d macros\n",
				opts.configPath, dims.Rows, dims.Cols, dims.Layers, built.Macros.Len())
			return nil
		},
	}
}

func newLayoutCmd(opts *options) *cobra.Command {
	var layerFlag int
	cmd := &cobra.Command{
		Use:   "layout [config]",
		Short: "Print the resolved keymap",
		Long: `Print each layer of the keymap as a grid. Transparent keys show
as "___" and disabled keys as "xxx".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configArg(opts, args)
			_, built, err := load(cmd.Context(), opts)
			if err != nil {
				return err
			}
			dims := built.Layout.Dimensions()
			if layerFlag >= int(dims.Layers) {
				return fmt.Errorf("layer %d out of range (have %d)", layerFlag, dims.Layers)
			}

			out := cmd.OutOrStdout()
			for l := uint8(0); l < dims.Layers; l++ {
				if layerFlag >= 0 && int(l) != layerFlag {
					continue
				}
				fmt.Fprintf(out, "layer %d\n", l)
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				for r := uint8(0); r < dims.Rows; r++ {
					cells := make([]string, dims.Cols)
					for c := uint8(0); c < dims.Cols; c++ {
						cells[c] = label(built.Layout.At(l, key.Pos(r, c)))
					}
					fmt.Fprintln(tw, strings.Join(cells, "\t"))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&layerFlag, "layer", "l", -1, "print only this layer")
	return cmd
}

func label(a action.Action) string {
	switch a.Kind {
	case action.KindTransparent:
		return "___"
	case action.KindNo:
		return "xxx"
	}
	return a.String()
}
