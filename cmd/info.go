/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serial-bindings"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Display detailed information about a serial port",
	Long: `Display the identity metadata the driver reports for a serial port.

Examples:
  serialbind info /dev/ttyUSB0
  serialbind info /dev/ROBOT --driver mock

For USB devices this includes vendor/product IDs, the serial number and the
Plug and Play identifier.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		portPath := args[0]

		ports, err := listPorts(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing ports: %v\n", err)
			os.Exit(1)
		}
		info, ok := findPort(ports, portPath)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error getting port info: %v: %s\n", serial.ErrPortNotFound, portPath)
			os.Exit(1)
		}
		printPortInfo(info)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func findPort(ports []serial.PortInfo, path string) (serial.PortInfo, bool) {
	for _, p := range ports {
		if p.Path == path {
			return p, true
		}
	}
	return serial.PortInfo{}, false
}

func printPortInfo(info serial.PortInfo) {
	fmt.Printf("Port Information: %s\n\n", info.Path)
	fmt.Printf("  Name:        %s\n", filepath.Base(info.Path))
	fmt.Printf("  Description: %s\n", serial.DescribePort(info.Path))

	if info.VendorID == "" && info.ProductID == "" && info.Manufacturer == "" && info.SerialNumber == "" {
		return
	}
	fmt.Println("\nDevice Information:")
	for _, f := range []struct{ label, value string }{
		{"Vendor ID:   ", info.VendorID},
		{"Product ID:  ", info.ProductID},
		{"Serial:      ", info.SerialNumber},
		{"Manufacturer:", info.Manufacturer},
		{"PnP ID:      ", info.PnpID},
		{"Location:    ", info.LocationID},
	} {
		if f.value != "" {
			fmt.Printf("  %s %s\n", f.label, f.value)
		}
	}
}
