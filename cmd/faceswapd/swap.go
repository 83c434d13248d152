package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dudu/faceswapd/internal/imaging"
	"github.com/dudu/faceswapd/internal/inference"
	"github.com/dudu/faceswapd/internal/models"
	"github.com/dudu/faceswapd/internal/pipeline"
)

type swapOptions struct {
	Source string
	Target string
	Out    string
}

var swapOpts swapOptions

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Swap faces between two local images",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSwap(cmd, swapOpts)
	},
}

func init() {
	swapCmd.Flags().StringVarP(&swapOpts.Source, "source", "s", "", "Image providing the face identity")
	swapCmd.Flags().StringVarP(&swapOpts.Target, "target", "t", "", "Image whose faces are replaced")
	swapCmd.Flags().StringVarP(&swapOpts.Out, "out", "o", "swapped.jpg", "Output JPEG path")

	swapCmd.MarkFlagRequired("source")
	swapCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(swapCmd)
}

func runSwap(cmd *cobra.Command, opts swapOptions) error {
	ctx := cmd.Context()

	source, err := os.ReadFile(opts.Source)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}
	target, err := os.ReadFile(opts.Target)
	if err != nil {
		return fmt.Errorf("failed to read target: %w", err)
	}

	holder := models.NewHolder[pipeline.Handles]()
	defer inference.Shutdown()
	defer holder.Close()
	if err := holder.Load(ctx, newLoader(cfg, os.Stderr).Load, releaseHandles); err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	p := pipeline.New(pipeline.Config{Quality: cfg.Quality, Sharpen: cfg.Sharpen}, imaging.Codec{}, holder)
	out, err := p.Swap(ctx, source, target)
	if err != nil {
		return fmt.Errorf("%s: %w", pipeline.KindOf(err), err)
	}
	if err := os.WriteFile(opts.Out, out, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	t := p.LastTiming()
	log.Info().
		Str("out", opts.Out).
		Int("faces", t.Faces).
		Dur("detection", t.Detection).
		Dur("swap", t.Swap).
		Dur("total", t.Total).
		Msg("swap complete")
	return nil
}
