/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture <port> <output-file>",
	Short: "Capture serial data to a file",
	Long: `Capture incoming serial data to a file for later parsing.

Reads data from the specified serial port and writes it unchanged to the
output file. Runs until interrupted (Ctrl+C), until the device goes away, or
until --duration has passed.

The output file is opened in append mode, allowing you to resume captures
without overwriting existing data.

Example usage:
  serialbind capture /dev/ttyUSB0 data.log
  serialbind capture /dev/ttyUSB0 output.txt --baud 115200
  serialbind capture /dev/ttyUSB0 capture.log --console
  serialbind capture /dev/ttyUSB0 capture.log --flow-control rtscts -c`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		showConsole, _ := cmd.Flags().GetBool("console")
		bufferSize, _ := cmd.Flags().GetInt("buffer")
		duration, _ := cmd.Flags().GetDuration("duration")

		var console io.Writer
		if showConsole {
			console = os.Stdout
		}
		if err := runCapture(cmd.Context(), args[0], args[1], bufferSize, duration, console); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().Int("buffer", 4096, "Read buffer size")
	captureCmd.Flags().BoolP("console", "c", false, "Display incoming data on console while capturing")
	captureCmd.Flags().Duration("duration", 0, "Stop after this long (0 = until interrupted)")
}

func runCapture(ctx context.Context, portPath, outputPath string, bufferSize int, duration time.Duration, console io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	s, err := openSession(ctx, portPath)
	if err != nil {
		return fmt.Errorf("failed to open port: %w", err)
	}
	defer s.Close()

	file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(os.Stderr, "Capturing data from %s to %s\n", portPath, outputPath)
	if console != nil {
		fmt.Fprintf(os.Stderr, "Console display enabled\n")
	}
	fmt.Fprintf(os.Stderr, "Press Ctrl+C to stop\n\n")

	var out io.Writer = file
	if console != nil {
		out = io.MultiWriter(file, console)
	}

	startTime := time.Now()
	written, err := copyPort(ctx, s, out, bufferSize)
	fmt.Fprintf(os.Stderr, "\nCapture complete: %d bytes written in %v\n", written, time.Since(startTime).Round(time.Millisecond))
	return err
}

// copyPort copies from the session to out until ctx ends or the port fails.
// Ending through ctx is not an error.
func copyPort(ctx context.Context, s *session, out io.Writer, bufferSize int) (int64, error) {
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	buffer := make([]byte, bufferSize)
	var total int64
	for {
		select {
		case err := <-s.lost:
			return total, fmt.Errorf("device disconnected: %w", err)
		default:
		}

		n, err := s.conn.ReadContext(ctx, buffer)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return total, nil
			}
			return total, fmt.Errorf("read error: %w", err)
		}
		w, err := out.Write(buffer[:n])
		total += int64(w)
		if err != nil {
			return total, fmt.Errorf("write error: %w", err)
		}
	}
}
