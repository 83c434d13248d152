package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dudu/faceswapd/internal/models"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download missing model files and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		specs := cfg.Models()
		if emap := cfg.Emap(); emap.URL != "" {
			specs = append(specs, emap)
		}
		if err := models.NewFetcher(os.Stderr).EnsureAll(cmd.Context(), specs); err != nil {
			return err
		}
		for _, s := range specs {
			log.Info().Str("model", s.Name).Str("path", s.Path).Msg("ready")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
