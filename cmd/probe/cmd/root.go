package cmd

import (
	goflag "flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "probe",
	Short: "Bit-bang JTAG/SWD debug probe driver",
	Long: `Drives a target's debug port either over GPIO pins (JTAG) or through a
serial bit-bang bridge speaking the hex exchange protocol (SWD).

Examples:
  probe discover                                  # List known probe bridges
  probe swd-id --port /dev/ttyACM0                # Switch to SWD and read DPIDR
  probe jtag-reset --tck 11 --tms 25 --tdi 10 --tdo 9`,
	Version: "0.2.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Expose glog's -v/-logtostderr flags alongside our own.
	rootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)
}
