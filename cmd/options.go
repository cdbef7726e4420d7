/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	serial "github.com/allbin/go-serial-bindings"
)

// openOptions builds the open options from flags, environment and config file.
func openOptions() (serial.OpenOptions, error) {
	parity, err := parseParity(viper.GetString("parity"))
	if err != nil {
		return serial.OpenOptions{}, err
	}
	fc, err := parseFlowControl(viper.GetString("flow-control"))
	if err != nil {
		return serial.OpenOptions{}, err
	}

	opts, err := serial.NewOpenOptions(
		serial.WithBaudRate(viper.GetInt("baud")),
		serial.WithDataBits(viper.GetInt("data-bits")),
		serial.WithStopBits(viper.GetInt("stop-bits")),
		serial.WithParity(parity),
		serial.WithFlowControl(fc),
		serial.WithLock(viper.GetBool("lock")),
	)
	if err != nil {
		return serial.OpenOptions{}, fmt.Errorf("port settings: %w", err)
	}
	return opts, nil
}

func parseParity(s string) (serial.Parity, error) {
	switch strings.ToLower(s) {
	case "", "none", "n":
		return serial.ParityNone, nil
	case "odd", "o":
		return serial.ParityOdd, nil
	case "even", "e":
		return serial.ParityEven, nil
	case "mark", "m":
		return serial.ParityMark, nil
	case "space", "s":
		return serial.ParitySpace, nil
	default:
		return 0, fmt.Errorf("invalid parity: %s (valid: none, odd, even, mark, space)", s)
	}
}

func parseFlowControl(s string) (serial.FlowControl, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return serial.FlowControlNone, nil
	case "rtscts", "cts", "hardware":
		return serial.FlowControlRTSCTS, nil
	case "xonxoff", "software":
		return serial.FlowControlXONXOFF, nil
	default:
		return 0, fmt.Errorf("invalid flow control: %s (valid: none, rtscts, xonxoff)", s)
	}
}

func parseSignalState(state string) (bool, error) {
	switch strings.ToLower(state) {
	case "high", "on", "true", "1":
		return true, nil
	case "low", "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid state: %s (valid: high, low, on, off, true, false, 1, 0)", state)
	}
}

func formatSignalState(state bool) string {
	if state {
		return "HIGH"
	}
	return "LOW"
}

// parseHexString decodes "48656c6c6f", "48 65 6C 6C 6F" or "0x48 0x65".
func parseHexString(hexStr string) ([]byte, error) {
	hexStr = strings.ReplaceAll(hexStr, "0x", "")
	hexStr = strings.ReplaceAll(hexStr, "0X", "")
	hexStr = strings.Join(strings.Fields(hexStr), "")

	if len(hexStr)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even length")
	}

	out := make([]byte, 0, len(hexStr)/2)
	for i := 0; i < len(hexStr); i += 2 {
		hexByte := hexStr[i : i+2]
		b, err := strconv.ParseUint(hexByte, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte '%s'", hexByte)
		}
		out = append(out, byte(b))
	}
	return out, nil
}
