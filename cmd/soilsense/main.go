// Command soilsense predicts soil fertility from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soilsense/soilsense/internal/logging"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "soilsense",
	Short: "Soil fertility prediction",
	Long: `SoilSense scores soil samples for fertility and suggests fertilizers,
crops and improvements.

A trained random forest is used when one is available; otherwise the
built-in agronomic rules decide.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log model loading and fallbacks")

	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger logs to stderr. Only warnings show unless --verbose is set.
func newLogger() (*zap.Logger, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logging.New(level, true)
}
