//go:build darwin

package main

import (
	"fmt"
	"io"

	"github.com/tsawler/go-metal/checkpoints"
)

// probeMetal reports whether go-metal's importer understands the model.
func probeMetal(w io.Writer, modelPath string) {
	fmt.Fprintln(w, "\ngo-metal import:")
	checkpoint, err := checkpoints.NewONNXImporter().ImportFromONNX(modelPath)
	if err != nil {
		fmt.Fprintf(w, "  unsupported: %v\n", err)
		return
	}
	fmt.Fprintf(w, "  layers=%d weights=%d\n", len(checkpoint.ModelSpec.Layers), len(checkpoint.Weights))
	for i, layer := range checkpoint.ModelSpec.Layers {
		fmt.Fprintf(w, "  %d: %s (%s)\n", i+1, layer.Name, layer.Type)
	}
}
