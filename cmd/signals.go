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

// signalsCmd represents the signals command
var signalsCmd = &cobra.Command{
	Use:   "signals <port>",
	Short: "Display current modem signal states",
	Long: `Display the current state of the modem input signals.

Examples:
  serialbind signals /dev/ttyUSB0
  serialbind signals /dev/ROBOT --driver mock

Signal meanings:
  CTS - Clear To Send (input)
  DSR - Data Set Ready (input)
  DCD - Data Carrier Detect (input)`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		portPath := args[0]

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		s, err := openSession(ctx, portPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening port: %v\n", err)
			os.Exit(1)
		}
		status, err := s.Binding().Get().Wait(ctx)
		s.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading modem signals: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Modem Signals for %s:\n\n", portPath)
		printModemStatus(status)
	},
}

func init() {
	rootCmd.AddCommand(signalsCmd)
}

func printModemStatus(status serial.ModemStatus) {
	fmt.Printf("  CTS (Clear To Send):       %s\n", formatSignalState(status.CTS))
	fmt.Printf("  DSR (Data Set Ready):      %s\n", formatSignalState(status.DSR))
	fmt.Printf("  DCD (Data Carrier Detect): %s\n", formatSignalState(status.DCD))
}
