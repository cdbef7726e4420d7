/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serial-bindings"
	"github.com/allbin/go-serial-bindings/mock"
)

// simulateCmd represents the simulate command
var simulateCmd = &cobra.Command{
	Use:   "simulate [data...]",
	Short: "Exercise a simulated serial device",
	Long: `Register a virtual port, open it through the mock binding and send each
argument to it. Ready data and echoed bytes are printed as they arrive.
Ready data is only sent by echoing ports.

Examples:
  serialbind simulate hello world
  serialbind simulate --ready "OK" --no-echo AT
  serialbind simulate --disconnect ping`,
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("path")
		ready, _ := cmd.Flags().GetString("ready")
		noEcho, _ := cmd.Flags().GetBool("no-echo")
		disconnect, _ := cmd.Flags().GetBool("disconnect")

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		cfg := simulation{
			path:       path,
			ready:      []byte(ready),
			echo:       !noEcho,
			disconnect: disconnect,
		}
		if err := runSimulation(ctx, cfg, args, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Simulation failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().String("path", "/dev/ROBOT", "Virtual port path")
	simulateCmd.Flags().String("ready", mock.DefaultReadyData, "Data queued when the port opens")
	simulateCmd.Flags().Bool("no-echo", false, "Do not echo written bytes back")
	simulateCmd.Flags().Bool("disconnect", false, "Simulate a disconnect before closing")
}

type simulation struct {
	path       string
	ready      []byte
	echo       bool
	disconnect bool
}

// readWindow bounds the wait for each expected reply.
const readWindow = 100 * time.Millisecond

func runSimulation(ctx context.Context, cfg simulation, data []string, out io.Writer) error {
	reg := mock.NewRegistry(mock.WithRegistryLogger(logger))
	defer reg.Close()

	if err := reg.CreatePort(cfg.path, mock.WithEcho(cfg.echo), mock.WithReadyData(cfg.ready)); err != nil {
		return err
	}

	lost := make(chan error, 1)
	b, err := mock.New(reg, func(err error) {
		select {
		case lost <- err:
		default:
		}
	}, serial.WithLogger(logger))
	if err != nil {
		return err
	}

	conn, err := serial.OpenConn(ctx, b, cfg.path, serial.DefaultOpenOptions())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Opened %s (echo %s)\n", cfg.path, formatSignalState(cfg.echo))

	// ready data only flows on echoing ports
	if cfg.echo && len(cfg.ready) > 0 {
		if err := readExpected(ctx, conn, len(cfg.ready), "ready", out); err != nil {
			return err
		}
	}

	for _, s := range data {
		if _, err := conn.WriteContext(ctx, []byte(s)); err != nil {
			return fmt.Errorf("write %q: %w", s, err)
		}
		fmt.Fprintf(out, "TX %q\n", s)
		if cfg.echo {
			if err := readExpected(ctx, conn, len(s), "echo", out); err != nil {
				return err
			}
		}
	}

	if state, ok := reg.Snapshot(cfg.path); ok {
		fmt.Fprintf(out, "Last write: %q, pending: %d bytes\n", state.LastWrite, len(state.Data))
	}

	if cfg.disconnect {
		b.Disconnect(nil)
		select {
		case err := <-lost:
			fmt.Fprintf(out, "Disconnected: %v\n", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := conn.CloseContext(ctx); err != nil {
		return err
	}
	st := b.Stats().Snapshot()
	fmt.Fprintf(out, "Closed. %d bytes written, %d bytes read\n", st.BytesWritten, st.BytesRead)
	return nil
}

// readExpected reads until n bytes have arrived or readWindow passes.
func readExpected(ctx context.Context, conn *serial.Conn, n int, label string, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, readWindow)
	defer cancel()

	got := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(got) < n {
		m, err := conn.ReadContext(ctx, buf[:n-len(got)])
		if err != nil {
			if ctx.Err() != nil && len(got) == 0 {
				return fmt.Errorf("no %s data: %w", label, err)
			}
			break
		}
		got = append(got, buf[:m]...)
	}
	fmt.Fprintf(out, "RX %q (%s)\n", got, label)
	return nil
}
