/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	serial "github.com/allbin/go-serial-bindings"
	"github.com/allbin/go-serial-bindings/internal/tui/components"
	"github.com/allbin/go-serial-bindings/internal/tui/keys"
	"github.com/allbin/go-serial-bindings/internal/tui/models"
	"github.com/allbin/go-serial-bindings/internal/tui/styles"
)

const (
	writeTimeout      = 5 * time.Second
	breakDuration     = 250 * time.Millisecond
	modemPollInterval = 500 * time.Millisecond
)

// baudCycle is the list the cycle-baud key steps through.
var baudCycle = []int{9600, 19200, 38400, 57600, 115200, 230400}

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <port>",
	Short: "Connect to a serial port with bidirectional communication",
	Long: `Connect to a serial port with an interactive terminal interface.

Features include:
- Real-time data streaming with timestamps
- Input field for sending ASCII or hex data, with history
- Hex, ASCII and timestamp display toggles
- DTR/RTS control, break and buffer flush
- Baud rate changes while connected
- Live CTS/DSR/DCD indicators

Example usage:
  serialbind connect /dev/ttyUSB0
  serialbind connect /dev/ttyUSB0 --baud 115200 --flow-control rtscts
  serialbind connect /dev/ROBOT --driver mock --mock-ready "OK"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runTUICommand(cmd, args[0], false)
	},
}

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen <port>",
	Short: "Listen for data on a serial port with real-time display",
	Long: `Listen for incoming data on a serial port in a read-only terminal interface.

This is connect without the send box and line controls.

Example usage:
  serialbind listen /dev/ttyUSB0
  serialbind listen /dev/ttyUSB0 --baud 115200 --no-hex`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runTUICommand(cmd, args[0], true)
	},
}

func init() {
	for _, c := range []*cobra.Command{connectCmd, listenCmd} {
		rootCmd.AddCommand(c)
		c.Flags().Bool("no-timestamps", false, "Hide timestamps")
		c.Flags().Bool("no-hex", false, "Hide the hex column")
		c.Flags().Bool("no-ascii", false, "Hide the ASCII column")
	}
	connectCmd.Flags().BoolP("hex-input", "x", false, "Start the send box in hex mode")
}

func runTUICommand(cmd *cobra.Command, portPath string, listenOnly bool) {
	noTimestamps, _ := cmd.Flags().GetBool("no-timestamps")
	noHex, _ := cmd.Flags().GetBool("no-hex")
	noASCII, _ := cmd.Flags().GetBool("no-ascii")
	hexInput, _ := cmd.Flags().GetBool("hex-input")

	mode := components.DisplayMode{
		ShowHex:        !noHex,
		ShowASCII:      !noASCII,
		ShowTimestamps: !noTimestamps,
	}
	sendMode := components.SendingModeASCII
	if hexInput {
		sendMode = components.SendingModeHex
	}

	if err := runConnectTUI(portPath, listenOnly, mode, sendMode); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type (
	txDoneMsg struct {
		id  int
		err error
	}
	linesMsg struct {
		lines serial.SetOptions
		note  string
		err   error
	}
	baudMsg struct {
		rate int
		err  error
	}
	modemMsg struct {
		status serial.ModemStatus
		err    error
	}
	eventMsg string
)

// connectModel represents the Bubble Tea model for the connect and listen commands
type connectModel struct {
	*models.SerialModel
	terminal   *components.Terminal
	statusBar  *components.StatusBar
	input      *components.Input
	help       help.Model
	keys       keys.Keys
	listenOnly bool
}

func runConnectTUI(portPath string, listenOnly bool, mode components.DisplayMode, sendMode components.SendingMode) error {
	opts, err := openOptions()
	if err != nil {
		return err
	}
	driver := viper.GetString("driver")
	if driver == "" {
		driver = "platform"
	}

	m := &connectModel{
		SerialModel: models.NewSerialModel(portPath),
		terminal:    components.NewTerminal(0, 0, mode),
		statusBar: components.NewStatusBar(portPath, components.ConnectionInfo{
			Driver:  driver,
			Options: opts,
			Lines:   serial.DefaultSetOptions(),
		}),
		input:      components.NewInput(sendMode),
		help:       help.New(),
		keys:       keys.New(listenOnly),
		listenOnly: listenOnly,
	}
	m.statusBar.SetConnecting()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	// mu orders the background open against teardown: whichever takes it
	// first decides who closes the session.
	var mu sync.Mutex
	var sess *session

	go func() {
		ctx := m.Context()
		s, err := openSession(ctx, portPath)
		if err != nil {
			p.Send(models.ConnectionStatusMsg{Connected: false, Error: err})
			return
		}
		mu.Lock()
		if ctx.Err() != nil {
			mu.Unlock()
			s.Close()
			return
		}
		sess = s
		m.SetConn(s.conn)
		mu.Unlock()

		p.Send(models.ConnectionStatusMsg{Connected: true})
		go func() {
			select {
			case err := <-s.lost:
				p.Send(models.ConnectionStatusMsg{Connected: false, Error: fmt.Errorf("device disconnected: %w", err)})
			case <-ctx.Done():
			}
		}()
		readLoop(ctx, p, s.conn)
	}()

	_, err = p.Run()

	mu.Lock()
	m.Cleanup()
	if sess != nil {
		sess.release()
	}
	mu.Unlock()
	return err
}

// readLoop forwards received data to the program until ctx ends or the
// port fails.
func readLoop(ctx context.Context, p *tea.Program, conn *serial.Conn) {
	buffer := make([]byte, 4096)
	for {
		n, err := conn.ReadContext(ctx, buffer)
		if err != nil {
			if ctx.Err() == nil {
				p.Send(models.ConnectionStatusMsg{Connected: false, Error: err})
			}
			return
		}
		data := make([]byte, n)
		copy(data, buffer[:n])
		p.Send(components.TrafficMsg{
			Timestamp: time.Now(),
			Dir:       components.RX,
			Data:      data,
		})
	}
}

// encodeInput turns the send box text into the bytes to write and the
// bytes to display. ASCII lines are terminated with a newline.
func encodeInput(text string, mode components.SendingMode) (payload, display []byte, err error) {
	if mode == components.SendingModeHex {
		payload, err = parseHexString(text)
		if err != nil {
			return nil, nil, err
		}
		if len(payload) == 0 {
			return nil, nil, fmt.Errorf("empty input")
		}
		return payload, payload, nil
	}
	return []byte(text + "\n"), []byte(text), nil
}

// nextBaud returns the entry of baudCycle after rate, wrapping around.
func nextBaud(rate int) int {
	for i, r := range baudCycle {
		if r == rate {
			return baudCycle[(i+1)%len(baudCycle)]
		}
	}
	for _, r := range baudCycle {
		if r > rate {
			return r
		}
	}
	return baudCycle[0]
}

func (m *connectModel) Init() tea.Cmd {
	return nil
}

func (m *connectModel) addEvent(note string) {
	m.terminal.Add(components.TrafficMsg{
		Timestamp: time.Now(),
		Dir:       components.Event,
		Note:      note,
	})
}

// portCmd runs fn against the open binding on a command goroutine.
func (m *connectModel) portCmd(fn func(ctx context.Context, b serial.Binding) tea.Msg) tea.Cmd {
	conn := m.Conn()
	if conn == nil {
		m.addEvent("not connected")
		return nil
	}
	ctx := m.Context()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		return fn(ctx, conn.Binding())
	}
}

func (m *connectModel) send() tea.Cmd {
	text := m.input.Value()
	conn := m.Conn()
	if text == "" || conn == nil {
		return nil
	}
	payload, display, err := encodeInput(text, m.input.SendingMode())
	if err != nil {
		m.addEvent(fmt.Sprintf("Invalid hex input: %v", err))
		return nil
	}

	id := m.NextTxID()
	m.terminal.Add(components.TrafficMsg{
		ID:        id,
		Timestamp: time.Now(),
		Dir:       components.TX,
		Data:      display,
		Status:    components.TxPending,
	})
	m.input.AddToHistory(text)
	m.input.SetValue("")

	ctx := m.Context()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		_, err := conn.WriteContext(ctx, payload)
		return txDoneMsg{id: id, err: err}
	}
}

func (m *connectModel) setLines(lines serial.SetOptions, note string) tea.Cmd {
	return m.portCmd(func(ctx context.Context, b serial.Binding) tea.Msg {
		return linesMsg{lines: lines, note: note, err: waitSet(ctx, b, lines)}
	})
}

func (m *connectModel) sendBreak() tea.Cmd {
	lines := m.Lines()
	return m.portCmd(func(ctx context.Context, b serial.Binding) tea.Msg {
		on := lines
		on.Brk = true
		if err := waitSet(ctx, b, on); err != nil {
			return linesMsg{lines: lines, err: err}
		}
		select {
		case <-time.After(breakDuration):
		case <-ctx.Done():
		}
		return linesMsg{lines: lines, note: "break sent", err: waitSet(ctx, b, lines)}
	})
}

func (m *connectModel) cycleBaud() tea.Cmd {
	rate := nextBaud(m.statusBar.Info().Options.BaudRate)
	return m.portCmd(func(ctx context.Context, b serial.Binding) tea.Msg {
		f, err := b.Update(serial.UpdateOptions{BaudRate: rate})
		if err == nil {
			_, err = f.Wait(ctx)
		}
		return baudMsg{rate: rate, err: err}
	})
}

func (m *connectModel) flush() tea.Cmd {
	return m.portCmd(func(ctx context.Context, b serial.Binding) tea.Msg {
		if _, err := b.Flush().Wait(ctx); err != nil {
			return eventMsg(fmt.Sprintf("flush failed: %v", err))
		}
		return eventMsg("buffers flushed")
	})
}

func (m *connectModel) pollModem(delay time.Duration) tea.Cmd {
	conn := m.Conn()
	if conn == nil {
		return nil
	}
	ctx := m.Context()
	return tea.Tick(delay, func(time.Time) tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		status, err := conn.Binding().Get().Wait(ctx)
		return modemMsg{status: status, err: err}
	})
}

func (m *connectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		inputHeight := 3
		if m.listenOnly {
			inputHeight = 0
		}
		statusBarHeight := 1
		m.terminal.SetSize(msg.Width, msg.Height-inputHeight-statusBarHeight)
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.SetReady(true)

	case models.ConnectionStatusMsg:
		m.SetConnected(msg.Connected)
		if msg.Error != nil {
			m.SetError(msg.Error)
			m.statusBar.SetDisconnected(msg.Error)
			m.addEvent(msg.Error.Error())
		} else {
			m.statusBar.SetConnected()
			cmds = append(cmds, m.pollModem(0))
		}

	case components.TrafficMsg:
		if !m.IsReady() {
			m.terminal.SetSize(80, 20)
			m.SetReady(true)
		}
		m.terminal.Add(msg)

	case txDoneMsg:
		if msg.err != nil {
			m.terminal.SetTxStatus(msg.id, components.TxFailed, msg.err.Error())
		} else {
			m.terminal.SetTxStatus(msg.id, components.TxWritten, "")
		}

	case linesMsg:
		if msg.err != nil {
			m.addEvent(fmt.Sprintf("set lines failed: %v", msg.err))
			break
		}
		m.SetLines(msg.lines)
		m.statusBar.SetLines(msg.lines)
		if msg.note != "" {
			m.addEvent(msg.note)
		}

	case baudMsg:
		if msg.err != nil {
			m.addEvent(fmt.Sprintf("baud rate change failed: %v", msg.err))
			break
		}
		m.statusBar.SetBaudRate(msg.rate)
		m.addEvent(fmt.Sprintf("baud rate %d", msg.rate))

	case modemMsg:
		if msg.err == nil {
			m.statusBar.SetModemStatus(msg.status)
		}
		if m.IsConnected() {
			cmds = append(cmds, m.pollModem(modemPollInterval))
		}

	case eventMsg:
		m.addEvent(string(msg))

	case tea.KeyMsg:
		if m.IsInInsertMode() {
			switch {
			case key.Matches(msg, m.keys.Escape):
				m.SetInputMode(models.InputModeNormal)
				m.input.Blur()
				return m, nil
			case key.Matches(msg, m.keys.Enter):
				return m, m.send()
			case key.Matches(msg, m.keys.Up):
				m.input.NavigateHistoryUp()
				return m, nil
			case key.Matches(msg, m.keys.Down):
				m.input.NavigateHistoryDown()
				return m, nil
			case key.Matches(msg, m.keys.ToggleSendMode):
				m.input.ToggleSendingMode()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		lines := m.Lines()
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.InsertMode):
			m.SetInputMode(models.InputModeInsert)
			m.input.Focus()
		case key.Matches(msg, m.keys.Clear):
			m.terminal.Clear()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.ToggleHex):
			m.terminal.ToggleHex()
		case key.Matches(msg, m.keys.ToggleASCII):
			m.terminal.ToggleASCII()
		case key.Matches(msg, m.keys.ToggleTimestamps):
			m.terminal.ToggleTimestamps()
		case key.Matches(msg, m.keys.ToggleSendMode):
			m.input.ToggleSendingMode()
		case key.Matches(msg, m.keys.ToggleDTR):
			lines.DTR = !lines.DTR
			cmds = append(cmds, m.setLines(lines, "DTR "+formatSignalState(lines.DTR)))
		case key.Matches(msg, m.keys.ToggleRTS):
			lines.RTS = !lines.RTS
			cmds = append(cmds, m.setLines(lines, "RTS "+formatSignalState(lines.RTS)))
		case key.Matches(msg, m.keys.Break):
			cmds = append(cmds, m.sendBreak())
		case key.Matches(msg, m.keys.CycleBaud):
			cmds = append(cmds, m.cycleBaud())
		case key.Matches(msg, m.keys.Flush):
			cmds = append(cmds, m.flush())
		}
	}

	var cmd tea.Cmd
	switch msg.(type) {
	case tea.WindowSizeMsg, tea.MouseMsg:
		_, cmd = m.terminal.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *connectModel) View() string {
	content := "Initializing..."
	if m.IsReady() {
		content = m.terminal.View()
	}
	parts := []string{styles.ContentBorderStyle.Render(content)}

	inputMode := m.InputMode().String()
	if m.listenOnly {
		inputMode = "LISTEN"
	} else {
		parts = append(parts, m.input.View(m.IsInInsertMode()))
	}

	if m.help.ShowAll {
		parts = append(parts, styles.HelpStyle.Render(m.help.View(m.keys)))
	}

	if w := m.terminal.Width(); w > 0 {
		m.statusBar.SetWidth(w)
	}
	statusBar := m.statusBar.View(inputMode, m.input.SendingMode().String(), m.IsConnected(), time.Now().Format("15:04:05"))
	parts = append(parts, statusBar)

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
