/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serial-bindings"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset <port>",
	Short: "Reset a device by pulsing DTR and flushing the port",
	Long: `Reset the device on a serial port through its control lines.

DTR and RTS are dropped for --pulse and then asserted again, which resets
many microcontroller boards. Buffered data in both directions is discarded
afterwards.

Examples:
  serialbind reset /dev/ttyACM0
  serialbind reset /dev/ttyUSB0 --pulse 250ms --rts=false`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		portPath := args[0]
		pulse, _ := cmd.Flags().GetDuration("pulse")
		withRTS, _ := cmd.Flags().GetBool("rts")

		fmt.Printf("Resetting device on %s...\n", portPath)
		if err := resetDevice(cmd.Context(), portPath, pulse, withRTS); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Device reset")
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().Duration("pulse", 100*time.Millisecond, "How long the lines are held low")
	resetCmd.Flags().Bool("rts", true, "Pulse RTS together with DTR")
}

// resetPulse returns the line states held during the pulse and after it.
func resetPulse(withRTS bool) (low, high serial.SetOptions) {
	high = serial.DefaultSetOptions()
	low = high
	low.DTR = false
	if withRTS {
		low.RTS = false
	}
	return low, high
}

func resetDevice(ctx context.Context, portPath string, pulse time.Duration, withRTS bool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second+pulse)
	defer cancel()

	s, err := openSession(ctx, portPath)
	if err != nil {
		return err
	}
	defer s.Close()
	b := s.Binding()

	low, high := resetPulse(withRTS)
	if err := waitSet(ctx, b, low); err != nil {
		return fmt.Errorf("dropping lines: %w", err)
	}
	select {
	case <-time.After(pulse):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := waitSet(ctx, b, high); err != nil {
		return fmt.Errorf("raising lines: %w", err)
	}
	if _, err := b.Flush().Wait(ctx); err != nil {
		return fmt.Errorf("flushing: %w", err)
	}
	return nil
}

func waitSet(ctx context.Context, b serial.Binding, opts serial.SetOptions) error {
	f, err := b.Set(opts)
	if err != nil {
		return err
	}
	_, err = f.Wait(ctx)
	return err
}
