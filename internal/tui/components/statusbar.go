package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	serial "github.com/allbin/go-serial-bindings"
	"github.com/allbin/go-serial-bindings/internal/tui/styles"
)

// ConnectionInfo is what the status bar knows about the open port.
type ConnectionInfo struct {
	Driver  string
	Options serial.OpenOptions
	Lines   serial.SetOptions
	Modem   *serial.ModemStatus // nil until the first Get completes
}

type StatusBar struct {
	portPath string
	status   string
	err      error
	width    int
	info     ConnectionInfo
}

func NewStatusBar(portPath string, info ConnectionInfo) *StatusBar {
	return &StatusBar{
		portPath: portPath,
		status:   "Initializing...",
		info:     info,
	}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) Info() ConnectionInfo {
	return sb.info
}

func (sb *StatusBar) SetBaudRate(rate int) {
	sb.info.Options.BaudRate = rate
}

func (sb *StatusBar) SetLines(lines serial.SetOptions) {
	sb.info.Lines = lines
}

func (sb *StatusBar) SetModemStatus(status serial.ModemStatus) {
	sb.info.Modem = &status
}

func (sb *StatusBar) SetConnecting() {
	sb.status = "Connecting..."
	sb.err = nil
}

func (sb *StatusBar) SetConnected() {
	sb.status = "Connected"
	sb.err = nil
}

func (sb *StatusBar) SetDisconnected(err error) {
	if err != nil {
		sb.status = fmt.Sprintf("Connection failed: %v", err)
		sb.err = err
	} else {
		sb.status = "Disconnected"
		sb.err = nil
	}
}

// FormatSettings renders port settings the usual way, e.g. "115200 8N1 RTS/CTS".
func FormatSettings(o serial.OpenOptions) string {
	o = o.Normalize()
	s := fmt.Sprintf("%d %d%s%d", o.BaudRate, o.DataBits, o.Parity, o.StopBits)
	if o.FlowControl != serial.FlowControlNone {
		s += " " + o.FlowControl.String()
	}
	return s
}

func (sb *StatusBar) lineIndicators() string {
	parts := []string{
		styles.Line("DTR", sb.info.Lines.DTR),
		styles.Line("RTS", sb.info.Lines.RTS),
	}
	if sb.info.Lines.Brk {
		parts = append(parts, styles.Line("BRK", true))
	}
	if m := sb.info.Modem; m != nil {
		parts = append(parts,
			styles.Line("CTS", m.CTS),
			styles.Line("DSR", m.DSR),
			styles.Line("DCD", m.DCD))
	}
	return strings.Join(parts, " ")
}

// View renders the single-line status bar in the style of an editor mode line.
func (sb *StatusBar) View(inputMode, sendingMode string, connected bool, timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	modeBg := styles.Blue
	if inputMode == "INSERT" {
		modeBg = styles.Green
	}
	mode := lipgloss.NewStyle().
		Foreground(styles.Base).
		Background(modeBg).
		Bold(true).
		Padding(0, 1).
		Render(inputMode)

	port := lipgloss.NewStyle().
		Foreground(styles.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.portPath)

	var connStyle lipgloss.Style
	var connIndicator string
	switch {
	case sb.err != nil:
		connStyle, connIndicator = lipgloss.NewStyle().Foreground(styles.Red), "✗ "+sb.err.Error()
	case connected:
		connStyle, connIndicator = lipgloss.NewStyle().Foreground(styles.Green), "●"
	case sb.status == "Connecting...":
		connStyle, connIndicator = lipgloss.NewStyle().Foreground(styles.Yellow), "○"
	default:
		connStyle, connIndicator = lipgloss.NewStyle().Foreground(styles.Red), "○"
	}
	connectionIndicator := connStyle.Render(connIndicator)

	divider := lipgloss.NewStyle().
		Foreground(styles.Surface2).
		Padding(0, 1).
		Render("│")

	left := []string{mode, port, connectionIndicator}
	if inputMode == "INSERT" && sendingMode != "" {
		left = append(left, lipgloss.NewStyle().
			Foreground(styles.Peach).
			Bold(true).
			Padding(0, 1).
			Render(fmt.Sprintf("[%s] Tab to toggle", sendingMode)))
	}
	left = append(left, divider)
	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, left...)

	details := "⚡ " + FormatSettings(sb.info.Options)
	if sb.info.Driver != "" {
		details += " (" + sb.info.Driver + ")"
	}
	connectionDetails := lipgloss.NewStyle().
		Foreground(styles.Subtext0).
		Padding(0, 1).
		Render(details)

	clock := lipgloss.NewStyle().
		Foreground(styles.Subtext1).
		Padding(0, 1).
		Render(timestamp)

	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, sb.lineIndicators(), divider, connectionDetails, divider, clock)

	spacerWidth := terminalWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	return lipgloss.NewStyle().
		Foreground(styles.Text).
		Background(styles.Surface0).
		Width(terminalWidth).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
