/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serial-bindings"
)

// setCmd represents the set command
var setCmd = &cobra.Command{
	Use:   "set <port> <line=state>...",
	Short: "Drive the output control lines",
	Long: `Set the output control lines of a serial port.

Lines that are not named keep the state of a freshly opened port
(DTR and RTS asserted, break off). With --hold the lines are kept for
the given time before the port is closed.

Examples:
  serialbind set /dev/ttyUSB0 dtr=low
  serialbind set /dev/ttyUSB0 rts=off dtr=on
  serialbind set /dev/ttyUSB0 brk=on --hold 250ms

Lines: dtr, rts, brk, cts, dsr
Valid states: high, low, on, off, true, false, 1, 0`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		portPath := args[0]
		hold, _ := cmd.Flags().GetDuration("hold")

		lines, err := parseLineStates(args[1:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := setLines(cmd.Context(), portPath, lines, hold); err != nil {
			fmt.Fprintf(os.Stderr, "Error setting lines: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Lines on %s: DTR=%s RTS=%s BRK=%s\n", portPath,
			formatSignalState(lines.DTR), formatSignalState(lines.RTS), formatSignalState(lines.Brk))
	},
}

func init() {
	rootCmd.AddCommand(setCmd)

	setCmd.Flags().Duration("hold", 0, "Keep the lines set this long before closing the port")
}

// parseLineStates applies "line=state" assignments on top of DefaultSetOptions.
func parseLineStates(assignments []string) (serial.SetOptions, error) {
	opts := serial.DefaultSetOptions()
	for _, a := range assignments {
		name, value, ok := strings.Cut(a, "=")
		if !ok {
			return opts, fmt.Errorf("invalid assignment: %s (want line=state)", a)
		}
		state, err := parseSignalState(value)
		if err != nil {
			return opts, err
		}
		switch strings.ToLower(name) {
		case "dtr":
			opts.DTR = state
		case "rts":
			opts.RTS = state
		case "brk", "break":
			opts.Brk = state
		case "cts":
			opts.CTS = state
		case "dsr":
			opts.DSR = state
		default:
			return opts, fmt.Errorf("unknown line: %s (valid: dtr, rts, brk, cts, dsr)", name)
		}
	}
	return opts, nil
}

func setLines(ctx context.Context, portPath string, lines serial.SetOptions, hold time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second+hold)
	defer cancel()

	s, err := openSession(ctx, portPath)
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := s.Binding().Set(lines)
	if err != nil {
		return err
	}
	if _, err := f.Wait(ctx); err != nil {
		return err
	}
	if hold > 0 {
		select {
		case <-time.After(hold):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
