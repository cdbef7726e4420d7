package serial

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

var (
	// Serial device names found under /dev
	devicePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^ttyUSB\d+$`), // USB serial adapters
		regexp.MustCompile(`^ttyACM\d+$`), // USB CDC/ACM devices
		regexp.MustCompile(`^ttyS\d+$`),   // Standard serial ports
		regexp.MustCompile(`^ttyAMA\d+$`), // ARM/Raspberry Pi serial
		regexp.MustCompile(`^ttymxc\d+$`), // i.MX serial ports
		regexp.MustCompile(`^ttyO\d+$`),   // OMAP serial ports
		regexp.MustCompile(`^ttySAC\d+$`), // Samsung serial ports
		regexp.MustCompile(`^ttyTHS\d+$`), // Tegra serial ports
	}

	// Virtual terminals and other non-serial devices
	excludePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^tty\d+$`),
		regexp.MustCompile(`^console$`),
		regexp.MustCompile(`^ptmx$`),
		regexp.MustCompile(`^pty.*$`),
	}
)

// scanDevDir returns the sorted paths of serial character devices in dir.
func scanDevDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, entry := range entries {
		name := entry.Name()
		if !IsSerialDeviceName(name) {
			continue
		}
		fullPath := filepath.Join(dir, name)
		if isCharacterDevice(fullPath) {
			ports = append(ports, fullPath)
		}
	}
	sort.Strings(ports)
	return ports, nil
}

// IsSerialDeviceName reports whether a /dev entry name looks like a
// serial port rather than a virtual terminal.
func IsSerialDeviceName(name string) bool {
	for _, p := range excludePatterns {
		if p.MatchString(name) {
			return false
		}
	}
	for _, p := range devicePatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// listPorts scans dir and fills in USB details from the OS enumerator.
// Enumerator failures are not fatal; the scan alone is enough to list.
func listPorts(dir string) ([]PortInfo, error) {
	paths, err := scanDevDir(dir)
	if err != nil {
		return nil, err
	}
	details, _ := enumerator.GetDetailedPortsList()
	return mergePortDetails(paths, details), nil
}

// mergePortDetails returns one PortInfo per path, enriched by the
// enumerator entry of the same name.
func mergePortDetails(paths []string, details []*enumerator.PortDetails) []PortInfo {
	byName := make(map[string]*enumerator.PortDetails, len(details))
	for _, d := range details {
		if d != nil {
			byName[d.Name] = d
		}
	}
	ports := make([]PortInfo, 0, len(paths))
	for _, path := range paths {
		info := PortInfo{Path: path}
		if d, ok := byName[path]; ok {
			applyPortDetails(&info, d)
		}
		ports = append(ports, info)
	}
	return ports
}

func applyPortDetails(info *PortInfo, d *enumerator.PortDetails) {
	if !d.IsUSB {
		return
	}
	info.VendorID = strings.ToLower(d.VID)
	info.ProductID = strings.ToLower(d.PID)
	info.SerialNumber = d.SerialNumber
	info.Manufacturer = d.Product
	info.PnpID = "usb-" + info.VendorID + "_" + info.ProductID
	if d.SerialNumber != "" {
		info.PnpID += "_" + d.SerialNumber
	}
}

// DescribePort provides a human-readable description for a port path.
func DescribePort(path string) string {
	name := filepath.Base(path)
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM Serial Port"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial Port"
	case strings.HasPrefix(name, "ttySAC"):
		return "Samsung Serial Port"
	case strings.HasPrefix(name, "ttyTHS"):
		return "Tegra Serial Port"
	case strings.HasPrefix(name, "ttyO"):
		return "OMAP Serial Port"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	case strings.HasPrefix(name, "COM"):
		return "COM Port"
	default:
		return "Serial Port"
	}
}
