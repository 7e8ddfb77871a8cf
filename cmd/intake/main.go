// Package main provides the intake CLI: probe the device, submit CV files and
// browse accepted intakes from the terminal.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cvscanner/internal/app"
	"cvscanner/internal/config"
	"cvscanner/internal/logger"
)

var (
	// Global flags
	outputJSON bool
	verbose    bool

	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "intake",
	Short: "CV scan intake from the terminal",
	Long: `intake drives the same capture pipeline as the kiosk service.

Use this tool to:
- Inspect the device profile the pipeline would adapt to
- Submit photos or PDFs of a CV to the analysis backend
- Browse and inspect accepted intakes`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()

		var out io.Writer = io.Discard
		if verbose {
			out = os.Stderr
		}
		log = logger.NewConsole(out)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline activity to stderr")

	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newShowCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openServices() (*app.Services, error) {
	services, err := app.NewServices(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open services: %w", err)
	}
	return services, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
