package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/swd"
)

var (
	swdPort    string
	swdBaud    uint
	swdTimeout time.Duration
)

var swdIDCmd = &cobra.Command{
	Use:   "swd-id",
	Short: "Switch the target to SWD and read its DPIDR",
	Long: `Opens the serial bridge, sends the JTAG-to-SWD switch sequence followed
by a line reset, then reads the Debug Port identification register.

Example:
  probe swd-id --port /dev/ttyACM0 --baud 115200`,
	RunE: runSWDID,
}

func init() {
	rootCmd.AddCommand(swdIDCmd)

	swdIDCmd.Flags().StringVarP(&swdPort, "port", "p", "/dev/ttyACM0",
		"serial device of the bridge")
	swdIDCmd.Flags().UintVar(&swdBaud, "baud", 115200,
		"serial baud rate")
	swdIDCmd.Flags().DurationVar(&swdTimeout, "timeout", 500*time.Millisecond,
		"inter-character read timeout")
}

func runSWDID(cmd *cobra.Command, args []string) error {
	sess := probe.NewSession()
	defer sess.Close()

	engine, err := sess.AttachSWD(swd.PortConfig{
		Name:             swdPort,
		BaudRate:         swdBaud,
		InterCharTimeout: swdTimeout,
	})
	if err != nil {
		return err
	}

	if err := engine.SwitchSeq(swd.SeqJTAGToSWD); err != nil {
		return fmt.Errorf("switch sequence failed: %w", err)
	}
	if err := engine.SwitchSeq(swd.SeqLineReset); err != nil {
		return fmt.Errorf("line reset failed: %w", err)
	}

	var idr uint32
	if err := engine.ReadReg(swd.Request(true, false, swd.RegIDR), &idr, 0); err != nil {
		return err
	}
	if err := engine.RunQueue(); err != nil {
		return fmt.Errorf("DPIDR read failed: %w", err)
	}

	fmt.Printf("DPIDR: 0x%08X\n", idr)
	return nil
}
