/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serial-bindings"
	"github.com/allbin/go-serial-bindings/internal/tui/styles"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available serial ports",
	Long: `List the serial ports the selected driver can see.

With the termios driver this scans /dev for communication-capable devices:
- USB serial adapters (ttyUSB*)
- USB CDC/ACM devices (ttyACM*)
- Standard serial ports (ttyS*)
- ARM/Raspberry Pi ports (ttyAMA*)
- And other platform-specific serial devices

USB metadata (vendor/product IDs, serial number) is filled in where the
system enumerator reports it. With --driver mock the virtual ports are listed.`,
	Run: func(cmd *cobra.Command, args []string) {
		filterType, _ := cmd.Flags().GetString("filter")
		tableFormat, _ := cmd.Flags().GetBool("table")

		ports, err := listPorts(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing ports: %v\n", err)
			os.Exit(1)
		}

		filtered := filterPorts(ports, filterType)
		if len(filtered) == 0 {
			if filterType != "" {
				fmt.Printf("No serial ports found matching filter: %s\n", filterType)
			} else {
				fmt.Println("No serial ports found")
			}
			return
		}

		if tableFormat {
			renderTable(os.Stdout, filtered)
		} else {
			renderSimple(filtered)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("filter", "", "Filter by port type: usb, standard, arm, all")
	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
}

// listPorts asks a fresh binding for its ports. Listing needs no open port.
func listPorts(ctx context.Context) ([]serial.PortInfo, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	b, release, err := newBinding(func(error) {})
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return b.List().Wait(ctx)
}

// filterPorts filters the port list based on the specified filter type
func filterPorts(ports []serial.PortInfo, filterType string) []serial.PortInfo {
	if filterType == "" || filterType == "all" {
		return ports
	}

	var filtered []serial.PortInfo
	for _, p := range ports {
		name := strings.ToLower(filepath.Base(p.Path))
		switch strings.ToLower(filterType) {
		case "usb":
			if strings.HasPrefix(name, "ttyusb") || strings.HasPrefix(name, "ttyacm") || p.VendorID != "" {
				filtered = append(filtered, p)
			}
		case "standard":
			if strings.HasPrefix(name, "ttys") || strings.HasPrefix(name, "com") {
				filtered = append(filtered, p)
			}
		case "arm":
			if strings.HasPrefix(name, "ttyama") {
				filtered = append(filtered, p)
			}
		}
	}
	return filtered
}

const (
	columnKeyPort         = "port"
	columnKeyType         = "type"
	columnKeyIDs          = "ids"
	columnKeySerial       = "serial"
	columnKeyManufacturer = "manufacturer"
)

// portTable builds a static table of ports, one row per port.
func portTable(ports []serial.PortInfo) table.Model {
	columns := []table.Column{
		table.NewColumn(columnKeyPort, "Port", 18).WithStyle(lipgloss.NewStyle().Foreground(styles.Mauve)),
		table.NewColumn(columnKeyType, "Type", 22),
		table.NewColumn(columnKeyIDs, "VID:PID", 11),
		table.NewColumn(columnKeySerial, "Serial", 16),
		table.NewColumn(columnKeyManufacturer, "Manufacturer", 26),
	}

	rows := make([]table.Row, 0, len(ports))
	for _, p := range ports {
		ids := ""
		if p.VendorID != "" || p.ProductID != "" {
			ids = p.VendorID + ":" + p.ProductID
		}
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyPort:         p.Path,
			columnKeyType:         serial.DescribePort(p.Path),
			columnKeyIDs:          ids,
			columnKeySerial:       p.SerialNumber,
			columnKeyManufacturer: p.Manufacturer,
		}))
	}

	return table.New(columns).
		WithRows(rows).
		BorderRounded().
		WithBaseStyle(lipgloss.NewStyle().
			Foreground(styles.Text).
			BorderForeground(styles.Surface2).
			Align(lipgloss.Left)).
		HeaderStyle(lipgloss.NewStyle().Foreground(styles.Blue).Bold(true))
}

// renderTable renders the port list in a styled static table format
func renderTable(w io.Writer, ports []serial.PortInfo) {
	fmt.Fprintf(w, "Found %d serial port(s):\n\n", len(ports))
	fmt.Fprintln(w, portTable(ports).View())
}

// renderSimple renders the port list in simple text format
func renderSimple(ports []serial.PortInfo) {
	for _, p := range ports {
		fmt.Println(p.Path)
	}
}
