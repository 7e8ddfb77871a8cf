package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cvscanner/internal/dto"
)

func newProbeCmd() *cobra.Command {
	var effectiveType string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Show the device profile of this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			services, err := openServices()
			if err != nil {
				return err
			}
			defer services.Close()

			profile := services.Prober.Probe(ctx, dto.ProbeHints{EffectiveType: effectiveType})
			if outputJSON {
				return printJSON(profile)
			}

			fmt.Printf("Camera:          %t (%d found)\n", profile.HasCamera, len(profile.Cameras))
			for _, c := range profile.Cameras {
				fmt.Printf("  - %s (facing %s)\n", c.Label, c.Facing)
			}
			fmt.Printf("File selection:  %t\n", profile.SupportsFileSelection)
			fmt.Printf("Low power:       %t (%d MiB, %d cores)\n", profile.IsLowPowerDevice,
				profile.MemoryBytes>>20, profile.LogicalCores)
			fmt.Printf("Network:         %s\n", profile.NetworkClass)
			return nil
		},
	}

	cmd.Flags().StringVar(&effectiveType, "network", "", "effective connection type (slow-2g, 2g, 3g, 4g)")
	return cmd
}
