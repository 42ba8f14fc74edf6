package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/bitbang"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/tap"
)

// pinFlags carries the GPIO wiring shared by the JTAG subcommands. Pin
// numbers are Broadcom GPIO numbers.
type pinFlags struct {
	tck, tms, tdi, tdo int
	trst, srst, led    int
	srstPullsTRST      bool
}

func addPinFlags(c *cobra.Command) *pinFlags {
	p := &pinFlags{}

	c.Flags().IntVar(&p.tck, "tck", -1, "TCK pin")
	c.Flags().IntVar(&p.tms, "tms", -1, "TMS pin")
	c.Flags().IntVar(&p.tdi, "tdi", -1, "TDI pin")
	c.Flags().IntVar(&p.tdo, "tdo", -1, "TDO pin")
	c.Flags().IntVar(&p.trst, "trst", bitbang.NoPin, "TRST pin (optional)")
	c.Flags().IntVar(&p.srst, "srst", bitbang.NoPin, "SRST pin (optional)")
	c.Flags().IntVar(&p.led, "led", bitbang.NoPin, "activity LED pin (optional)")
	c.Flags().BoolVar(&p.srstPullsTRST, "srst-pulls-trst", false,
		"asserting SRST also resets the TAP on this board")

	c.MarkFlagRequired("tck")
	c.MarkFlagRequired("tms")
	c.MarkFlagRequired("tdi")
	c.MarkFlagRequired("tdo")
	return p
}

func (p *pinFlags) transport() (*bitbang.RPIOTransport, error) {
	return bitbang.NewRPIOTransport(bitbang.RPIOPins{
		TCK:  p.tck,
		TMS:  p.tms,
		TDI:  p.tdi,
		TDO:  p.tdo,
		TRST: p.trst,
		SRST: p.srst,
		LED:  p.led,
	})
}

// resetBatch pulses the reset lines that are wired, walks the TAP into
// RESET and parks it in IDLE.
func (p *pinFlags) resetBatch() []bitbang.Command {
	return []bitbang.Command{
		bitbang.ResetCommand{TRST: p.trst != bitbang.NoPin, SRST: p.srst != bitbang.NoPin},
		bitbang.SleepCommand{Micros: 10000},
		bitbang.ResetCommand{},
		bitbang.StateMoveCommand{EndState: tap.StateReset},
		bitbang.StableClocksCommand{Cycles: 5},
		bitbang.StateMoveCommand{EndState: tap.StateIdle},
	}
}

var jtagResetCmd = &cobra.Command{
	Use:   "jtag-reset",
	Short: "Reset the target TAP over GPIO pins",
	Long: `Pulses TRST (and optionally SRST), walks the TAP into RESET and parks it
in IDLE.

Example:
  probe jtag-reset --tck 11 --tms 25 --tdi 10 --tdo 9 --trst 7`,
	RunE: runJTAGReset,
}

var jtagResetPins *pinFlags

func init() {
	rootCmd.AddCommand(jtagResetCmd)
	jtagResetPins = addPinFlags(jtagResetCmd)
}

func runJTAGReset(cmd *cobra.Command, args []string) error {
	tr, err := jtagResetPins.transport()
	if err != nil {
		return err
	}
	defer tr.Close()

	sess := probe.NewSession()
	exec, err := sess.AttachJTAG(tr, nil)
	if err != nil {
		return err
	}
	exec.Reset.SRSTPullsTRST = jtagResetPins.srstPullsTRST

	if err := exec.Run(jtagResetPins.resetBatch()); err != nil {
		return fmt.Errorf("reset batch failed: %w", err)
	}

	fmt.Printf("TAP parked in %s\n", exec.Driver.State())
	return nil
}
