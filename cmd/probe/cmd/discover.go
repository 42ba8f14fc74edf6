package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List connected probe bridges",
	Long: `Enumerates USB devices matching known serial-bridge adapters. The
on-board GPIO header is always listed so the JTAG pin path can be used
without any USB hardware.`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	bridges, err := probe.Discover(context.Background())
	if err != nil {
		return fmt.Errorf("failed to enumerate bridges: %w", err)
	}

	for _, b := range bridges {
		fmt.Printf("%-12s %s\n", b.Kind, b.Label())
	}
	return nil
}
