package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/soilsense/soilsense/internal/artifact"
)

var inspectRemote string

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Work with model artifacts",
}

var modelInspectCmd = &cobra.Command{
	Use:   "inspect [artifact]",
	Short: "Show what a model artifact supports",
	Long: `Load a model artifact, or probe a model service with --remote, and print
its output kind, probability support, scaler and feature importances.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModelInspect,
}

func init() {
	modelInspectCmd.Flags().StringVar(&inspectRemote, "remote", "", "Model service URL to probe instead of a file")
	modelCmd.AddCommand(modelInspectCmd)
}

func runModelInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	src := artifact.Source{RemoteURL: inspectRemote}
	if len(args) == 1 {
		src.Path = args[0]
	}
	if src.Path == "" && src.RemoteURL == "" {
		return errors.New("give an artifact path or --remote")
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	m, err := artifact.Open(ctx, src, logger)
	if err != nil {
		return err
	}

	printModel(cmd.OutOrStdout(), m)
	return nil
}
