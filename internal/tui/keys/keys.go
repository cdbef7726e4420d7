package keys

import "github.com/charmbracelet/bubbles/key"

// Keys are the bindings of the connect TUI. Normal mode drives the port and
// the display; insert mode edits the send box.
type Keys struct {
	Quit       key.Binding
	Help       key.Binding
	InsertMode key.Binding
	Escape     key.Binding

	// display
	Clear            key.Binding
	ToggleHex        key.Binding
	ToggleASCII      key.Binding
	ToggleTimestamps key.Binding

	// send box
	Enter          key.Binding
	ToggleSendMode key.Binding
	Up             key.Binding
	Down           key.Binding

	// port control
	ToggleDTR key.Binding
	ToggleRTS key.Binding
	Break     key.Binding
	CycleBaud key.Binding
	Flush     key.Binding

	// ListenOnly hides the keys that write to the port.
	ListenOnly bool
}

func bind(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

func New(listenOnly bool) Keys {
	k := Keys{
		Quit:       bind("q/ctrl+c", "quit", "q", "Q", "ctrl+c"),
		Help:       bind("?", "toggle help", "?"),
		InsertMode: bind("i", "insert mode", "i", "I"),
		Escape:     bind("esc", "normal mode", "esc"),

		Clear:            bind("c", "clear buffer", "c"),
		ToggleHex:        bind("h", "toggle hex", "h"),
		ToggleASCII:      bind("a", "toggle ascii", "a"),
		ToggleTimestamps: bind("t", "toggle timestamps", "t"),

		Enter:          bind("enter", "send message", "enter"),
		ToggleSendMode: bind("tab", "toggle send mode", "tab"),
		Up:             bind("↑", "previous", "up"),
		Down:           bind("↓", "next", "down"),

		ToggleDTR: bind("d", "toggle DTR", "d"),
		ToggleRTS: bind("r", "toggle RTS", "r"),
		Break:     bind("B", "send break", "B"),
		CycleBaud: bind("b", "next baud rate", "b"),
		Flush:     bind("f", "flush buffers", "f"),

		ListenOnly: listenOnly,
	}
	if listenOnly {
		for _, b := range []*key.Binding{&k.InsertMode, &k.ToggleDTR, &k.ToggleRTS, &k.Break} {
			b.SetEnabled(false)
		}
	}
	return k
}

func (k Keys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.InsertMode, k.Clear, k.Quit}
}

func (k Keys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.InsertMode, k.Escape, k.Enter, k.ToggleSendMode, k.Up, k.Down},
		{k.Clear, k.ToggleHex, k.ToggleASCII, k.ToggleTimestamps},
		{k.ToggleDTR, k.ToggleRTS, k.Break, k.CycleBaud, k.Flush},
		{k.Help, k.Quit},
	}
}
