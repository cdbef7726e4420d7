package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// maxTraffic bounds the scrollback; the oldest entries are dropped first.
const maxTraffic = 5000

// Terminal is the scrolling traffic view. It keeps the raw entries so a
// display mode change can reformat everything.
type Terminal struct {
	viewport  viewport.Model
	formatter *DataFormatter
	traffic   []TrafficMsg
	lines     []string
}

func NewTerminal(width, height int, mode DisplayMode) *Terminal {
	return &Terminal{
		viewport:  viewport.New(width, height),
		formatter: NewDataFormatter(mode),
	}
}

func (t *Terminal) SetSize(width, height int) {
	t.viewport.Width = width
	t.viewport.Height = height
}

func (t *Terminal) Width() int {
	return t.viewport.Width
}

// Add appends an entry and scrolls to it.
func (t *Terminal) Add(msg TrafficMsg) {
	t.traffic = append(t.traffic, msg)
	t.lines = append(t.lines, t.formatter.FormatMessage(msg))
	if len(t.traffic) > maxTraffic {
		drop := len(t.traffic) - maxTraffic
		t.traffic = append([]TrafficMsg(nil), t.traffic[drop:]...)
		t.lines = append([]string(nil), t.lines[drop:]...)
	}
	t.render()
}

// SetTxStatus updates the TX entry with the given ID. It reports whether
// the entry was found.
func (t *Terminal) SetTxStatus(id int, status TxStatus, note string) bool {
	for i := len(t.traffic) - 1; i >= 0; i-- {
		if t.traffic[i].Dir == TX && t.traffic[i].ID == id {
			t.traffic[i].Status = status
			t.traffic[i].Note = note
			t.lines[i] = t.formatter.FormatMessage(t.traffic[i])
			t.render()
			return true
		}
	}
	return false
}

// Traffic returns the entries currently held.
func (t *Terminal) Traffic() []TrafficMsg {
	return t.traffic
}

func (t *Terminal) Refresh() {
	t.lines = t.formatter.FormatMessages(t.traffic)
	t.render()
}

func (t *Terminal) Clear() {
	t.traffic = nil
	t.lines = nil
	t.viewport.SetContent("")
}

func (t *Terminal) ToggleHex() {
	t.formatter.ToggleHex()
	t.Refresh()
}

func (t *Terminal) ToggleASCII() {
	t.formatter.ToggleASCII()
	t.Refresh()
}

func (t *Terminal) ToggleTimestamps() {
	t.formatter.ToggleTimestamps()
	t.Refresh()
}

func (t *Terminal) DisplayMode() DisplayMode {
	return t.formatter.Mode()
}

func (t *Terminal) render() {
	t.viewport.SetContent(strings.Join(t.lines, "\n"))
	t.viewport.GotoBottom()
}

func (t *Terminal) Update(msg tea.Msg) (viewport.Model, tea.Cmd) {
	// Only window and mouse messages reach the viewport, so its own key
	// bindings never shadow ours.
	switch msg.(type) {
	case tea.WindowSizeMsg, tea.MouseMsg:
		var cmd tea.Cmd
		t.viewport, cmd = t.viewport.Update(msg)
		return t.viewport, cmd
	default:
		return t.viewport, nil
	}
}

func (t *Terminal) View() string {
	return t.viewport.View()
}
