package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dudu/faceswapd/internal/imaging"
	"github.com/dudu/faceswapd/internal/inference"
	"github.com/dudu/faceswapd/internal/models"
	"github.com/dudu/faceswapd/internal/pipeline"
	"github.com/dudu/faceswapd/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default command)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	serveCmd.Flags().Int64Var(&cfg.MaxUpload, "max-upload", cfg.MaxUpload, "Maximum request body size in bytes")
	serveCmd.Flags().StringVar(&cfg.AllowOrigin, "allow-origin", cfg.AllowOrigin, "Access-Control-Allow-Origin value")
	rootCmd.AddCommand(serveCmd)
}

// runServe starts the API right away and loads the models in the
// background. Requests arriving before the load completes get 503.
func runServe(ctx context.Context) error {
	holder := models.NewHolder[pipeline.Handles]()
	defer inference.Shutdown()
	defer holder.Close()

	go func() {
		log.Info().Msg("loading models")
		if err := holder.Load(ctx, newLoader(cfg, os.Stderr).Load, releaseHandles); err != nil {
			log.Error().Err(err).Msg("model initialization failed, swaps will be refused")
		}
	}()

	p := pipeline.New(pipeline.Config{Quality: cfg.Quality, Sharpen: cfg.Sharpen}, imaging.Codec{}, holder)
	srv := server.New(server.Config{
		Addr:        cfg.Addr,
		MaxUpload:   cfg.MaxUpload,
		AllowOrigin: cfg.AllowOrigin,
	}, p)

	return srv.Run(ctx)
}
