package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/faceswapd/internal/inference"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <model.onnx>",
	Short: "Print the inputs, outputs and metadata of an ONNX model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modelPath := args[0]
		if _, err := os.Stat(modelPath); err != nil {
			return err
		}
		if err := inference.Initialize(cfg.OnnxRuntimeLib); err != nil {
			return err
		}
		defer inference.Shutdown()

		w := cmd.OutOrStdout()
		if err := describeModel(w, modelPath); err != nil {
			return err
		}
		probeMetal(w, modelPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func describeModel(w io.Writer, modelPath string) error {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return fmt.Errorf("failed to get model info: %w", err)
	}

	fmt.Fprintf(w, "Model: %s (onnxruntime %s)\n", modelPath, ort.GetVersion())
	fmt.Fprintf(w, "\nInputs (%d):\n", len(inputs))
	for _, info := range inputs {
		fmt.Fprintf(w, "  %s: shape=%v, type=%v\n", info.Name, info.Dimensions, info.DataType)
	}
	fmt.Fprintf(w, "\nOutputs (%d):\n", len(outputs))
	for _, info := range outputs {
		fmt.Fprintf(w, "  %s: shape=%v, type=%v\n", info.Name, info.Dimensions, info.DataType)
	}

	metadata, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		fmt.Fprintf(w, "\nMetadata unavailable: %v\n", err)
		return nil
	}
	defer metadata.Destroy()

	fmt.Fprintln(w, "\nMetadata:")
	if producer, err := metadata.GetProducerName(); err == nil {
		fmt.Fprintf(w, "  Producer: %s\n", producer)
	}
	if version, err := metadata.GetVersion(); err == nil {
		fmt.Fprintf(w, "  Version: %d\n", version)
	}
	if domain, err := metadata.GetDomain(); err == nil {
		fmt.Fprintf(w, "  Domain: %s\n", domain)
	}
	if desc, err := metadata.GetDescription(); err == nil && desc != "" {
		fmt.Fprintf(w, "  Description: %s\n", desc)
	}
	return nil
}
