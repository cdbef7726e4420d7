/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serial-bindings"
)

var (
	monitorSignals  []string
	monitorInterval time.Duration
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <port>",
	Short: "Monitor modem signal changes",
	Long: `Monitor modem input signal changes.

Polls the input lines every --interval and reports when the watched
signals change state. Press Ctrl+C to stop.

Examples:
  serialbind monitor /dev/ttyUSB0
  serialbind monitor /dev/ttyUSB0 --signals cts,dsr
  serialbind monitor /dev/ttyUSB0 --signals dcd --interval 10ms

Available signals: cts, dsr, dcd`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		portPath := args[0]

		mask, err := parseSignalMask(monitorSignals)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing signals: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runMonitor(ctx, portPath, mask, monitorInterval); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().StringSliceVarP(&monitorSignals, "signals", "s", []string{"cts", "dsr", "dcd"},
		"Signals to monitor (comma-separated: cts,dsr,dcd)")
	monitorCmd.Flags().DurationVarP(&monitorInterval, "interval", "i", 50*time.Millisecond,
		"Polling interval")
}

// signalMask selects which input lines are watched.
type signalMask struct {
	CTS, DSR, DCD bool
}

func parseSignalMask(signalNames []string) (signalMask, error) {
	if len(signalNames) == 0 {
		return signalMask{CTS: true, DSR: true, DCD: true}, nil
	}

	var mask signalMask
	for _, name := range signalNames {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "cts":
			mask.CTS = true
		case "dsr":
			mask.DSR = true
		case "dcd":
			mask.DCD = true
		default:
			return signalMask{}, fmt.Errorf("unknown signal: %s (valid: cts, dsr, dcd)", name)
		}
	}
	return mask, nil
}

// changedSignals lists the watched signals that differ between prev and cur.
func changedSignals(prev, cur serial.ModemStatus, mask signalMask) []string {
	var changed []string
	if mask.CTS && prev.CTS != cur.CTS {
		changed = append(changed, fmt.Sprintf("CTS: %s", formatSignalState(cur.CTS)))
	}
	if mask.DSR && prev.DSR != cur.DSR {
		changed = append(changed, fmt.Sprintf("DSR: %s", formatSignalState(cur.DSR)))
	}
	if mask.DCD && prev.DCD != cur.DCD {
		changed = append(changed, fmt.Sprintf("DCD: %s", formatSignalState(cur.DCD)))
	}
	return changed
}

func runMonitor(ctx context.Context, portPath string, mask signalMask, interval time.Duration) error {
	s, err := openSession(ctx, portPath)
	if err != nil {
		return fmt.Errorf("opening port: %w", err)
	}
	defer s.Close()

	fmt.Printf("Monitoring signals on %s (signals: %s)\n", portPath, strings.Join(monitorSignals, ", "))
	fmt.Println("Press Ctrl+C to stop")

	prev, err := s.Binding().Get().Wait(ctx)
	if err != nil {
		return fmt.Errorf("reading initial signals: %w", err)
	}
	fmt.Printf("[%s] Initial state:\n", time.Now().Format("15:04:05"))
	printModemStatus(prev)
	fmt.Println()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopping monitor...")
			return nil
		case err := <-s.lost:
			return fmt.Errorf("device disconnected: %w", err)
		case <-ticker.C:
		}

		cur, err := s.Binding().Get().Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return fmt.Errorf("reading signals: %w", err)
		}
		if changed := changedSignals(prev, cur, mask); len(changed) > 0 {
			fmt.Printf("[%s] Signal change detected:\n", time.Now().Format("15:04:05"))
			for _, c := range changed {
				fmt.Printf("  %s\n", c)
			}
			fmt.Println()
		}
		prev = cur
	}
}
