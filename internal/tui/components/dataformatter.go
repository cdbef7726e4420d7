package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-serial-bindings/internal/tui/styles"
)

// Direction tells where a traffic entry came from.
type Direction int

const (
	RX Direction = iota
	TX
	Event // local notices: line changes, errors, baud updates
)

// TxStatus tracks a write from submission to completion.
type TxStatus int

const (
	TxPending TxStatus = iota
	TxWritten
	TxFailed
)

// TrafficMsg is one line of the terminal: received data, a write, or an event.
type TrafficMsg struct {
	ID        int // set on TX entries so their status can be updated
	Timestamp time.Time
	Dir       Direction
	Data      []byte
	Status    TxStatus
	Note      string
}

type DisplayMode struct {
	ShowHex        bool
	ShowASCII      bool
	ShowTimestamps bool
}

type DataFormatter struct {
	mode DisplayMode
}

func NewDataFormatter(mode DisplayMode) *DataFormatter {
	return &DataFormatter{mode: mode}
}

func (df *DataFormatter) Mode() DisplayMode {
	return df.mode
}

func (df *DataFormatter) ToggleHex()        { df.mode.ShowHex = !df.mode.ShowHex }
func (df *DataFormatter) ToggleASCII()      { df.mode.ShowASCII = !df.mode.ShowASCII }
func (df *DataFormatter) ToggleTimestamps() { df.mode.ShowTimestamps = !df.mode.ShowTimestamps }

// Printable replaces every byte outside printable ASCII with a dot, so
// device data can never inject terminal control sequences.
func Printable(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data))
	for _, b := range data {
		if b >= 32 && b <= 126 {
			sb.WriteByte(b)
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

func indicator(msg TrafficMsg) string {
	var color lipgloss.Color
	var text string
	switch msg.Dir {
	case TX:
		switch msg.Status {
		case TxWritten:
			color, text = styles.Green, "↗ TX ✓"
		case TxFailed:
			color, text = styles.Red, "↗ TX ✗"
		default:
			color, text = styles.Yellow, "↗ TX ○"
		}
	case Event:
		color, text = styles.Mauve, "• --"
	default:
		color, text = styles.Sky, "↙ RX"
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(text)
}

func (df *DataFormatter) FormatMessage(msg TrafficMsg) string {
	var line []string
	if df.mode.ShowTimestamps {
		line = append(line, lipgloss.NewStyle().
			Foreground(styles.Subtext0).
			Render("["+msg.Timestamp.Format("15:04:05.000")+"]"))
	}
	line = append(line, indicator(msg)+":")

	if msg.Dir == Event {
		return strings.Join(append(line, msg.Note), " ")
	}

	var parts []string
	if df.mode.ShowHex {
		parts = append(parts, fmt.Sprintf("HEX: % X", msg.Data))
	}
	if df.mode.ShowASCII {
		parts = append(parts, "ASCII: "+Printable(msg.Data))
	}
	if !df.mode.ShowHex && !df.mode.ShowASCII {
		parts = append(parts, fmt.Sprintf("BYTES: %d", len(msg.Data)))
	}
	if msg.Note != "" {
		parts = append(parts, msg.Note)
	}
	return strings.Join(append(line, strings.Join(parts, "  ")), " ")
}

func (df *DataFormatter) FormatMessages(messages []TrafficMsg) []string {
	formatted := make([]string, len(messages))
	for i, msg := range messages {
		formatted[i] = df.FormatMessage(msg)
	}
	return formatted
}
