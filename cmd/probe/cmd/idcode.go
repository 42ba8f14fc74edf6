package cmd

import (
	"encoding/binary"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/bitbang"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/idcode"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/tap"
)

var jtagIDCodeCmd = &cobra.Command{
	Use:   "jtag-idcode",
	Short: "Read and decode the device identification register",
	Long: `Resets the TAP so the identification register is selected, shifts out
32 bits of DR and decodes the JEP106 manufacturer, part number and
revision.

Example:
  probe jtag-idcode --tck 11 --tms 25 --tdi 10 --tdo 9`,
	RunE: runJTAGIDCode,
}

var jtagIDCodePins *pinFlags

func init() {
	rootCmd.AddCommand(jtagIDCodeCmd)
	jtagIDCodePins = addPinFlags(jtagIDCodeCmd)
}

func runJTAGIDCode(cmd *cobra.Command, args []string) error {
	tr, err := jtagIDCodePins.transport()
	if err != nil {
		return err
	}
	defer tr.Close()

	sess := probe.NewSession()
	exec, err := sess.AttachJTAG(tr, nil)
	if err != nil {
		return err
	}
	exec.Reset.SRSTPullsTRST = jtagIDCodePins.srstPullsTRST

	// Reset selects IDCODE (or BYPASS) as the active DR on every TAP.
	var raw [4]byte
	batch := append(jtagIDCodePins.resetBatch(),
		bitbang.ScanCommand{
			Fields:   []bitbang.ScanField{{NumBits: 32, In: raw[:]}},
			EndState: tap.StateIdle,
		},
	)
	if err := exec.Run(batch); err != nil {
		return fmt.Errorf("idcode batch failed: %w", err)
	}

	id, ok := idcode.Parse(binary.LittleEndian.Uint32(raw[:]))
	if !ok {
		return fmt.Errorf("no IDCODE on this TAP (captured %08x)", id.Raw)
	}

	fmt.Println(id)
	return nil
}
