package serial

import (
	"errors"
	"reflect"
	"testing"
)

func TestDefaultOpenOptions(t *testing.T) {
	o := DefaultOpenOptions()

	if o.BaudRate != 9600 {
		t.Errorf("Expected BaudRate 9600, got %d", o.BaudRate)
	}
	if o.DataBits != 8 {
		t.Errorf("Expected DataBits 8, got %d", o.DataBits)
	}
	if o.StopBits != 1 {
		t.Errorf("Expected StopBits 1, got %d", o.StopBits)
	}
	if o.Parity != ParityNone {
		t.Errorf("Expected Parity None, got %v", o.Parity)
	}
	if o.Lock {
		t.Error("Expected Lock false")
	}
}

func TestNewOpenOptions(t *testing.T) {
	o, err := NewOpenOptions(
		WithBaudRate(115200),
		WithDataBits(7),
		WithStopBits(2),
		WithParity(ParityEven),
		WithFlowControl(FlowControlRTSCTS),
		WithLock(true),
		WithTunable(TunableVTime, 10),
	)
	if err != nil {
		t.Fatalf("NewOpenOptions failed: %v", err)
	}
	want := OpenOptions{
		BaudRate:    115200,
		DataBits:    7,
		StopBits:    2,
		Parity:      ParityEven,
		FlowControl: FlowControlRTSCTS,
		Lock:        true,
	}
	got := o
	got.Tunables = nil
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NewOpenOptions = %+v, want %+v", got, want)
	}
	if o.Tunables[TunableVTime] != 10 {
		t.Errorf("vtime = %d, want 10", o.Tunables[TunableVTime])
	}
}

func TestInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want error
	}{
		{"zero baud", WithBaudRate(0), ErrInvalidBaudRate},
		{"negative baud", WithBaudRate(-9600), ErrInvalidBaudRate},
		{"4 data bits", WithDataBits(4), ErrInvalidConfig},
		{"9 data bits", WithDataBits(9), ErrInvalidConfig},
		{"3 stop bits", WithStopBits(3), ErrInvalidConfig},
		{"unknown parity", WithParity(Parity(42)), ErrInvalidConfig},
		{"unknown flow control", WithFlowControl(FlowControl(-1)), ErrInvalidConfig},
		{"unnamed tunable", WithTunable("", 1), ErrInvalidConfig},
		{"negative tunable", WithTunable(TunableVMin, -1), ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewOpenOptions(tt.opt); !errors.Is(err, tt.want) {
				t.Errorf("NewOpenOptions error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	got := OpenOptions{BaudRate: 57600}.Normalize()
	if got.BaudRate != 57600 || got.DataBits != 8 || got.StopBits != 1 {
		t.Errorf("Normalize() = %+v, want 57600 8N1", got)
	}
}

func TestCloneDoesNotShareTunables(t *testing.T) {
	o := OpenOptions{Tunables: Tunables{TunableVMin: 1}}
	c := o.Clone()
	c.Tunables[TunableVMin] = 9
	if o.Tunables[TunableVMin] != 1 {
		t.Errorf("original vmin = %d after changing clone, want 1", o.Tunables[TunableVMin])
	}
}

func TestMergeTunables(t *testing.T) {
	platform := Tunables{TunableVMin: 1, TunableVTime: 0}
	binding := Tunables{TunableVTime: 2}
	call := Tunables{TunableVMin: 4}

	got := MergeTunables(platform, binding, call)
	if got.Int(TunableVMin, -1) != 4 {
		t.Errorf("vmin = %d, want 4", got.Int(TunableVMin, -1))
	}
	if got.Int(TunableVTime, -1) != 2 {
		t.Errorf("vtime = %d, want 2", got.Int(TunableVTime, -1))
	}
	if got.Int("missing", 7) != 7 {
		t.Errorf("missing = %d, want default 7", got.Int("missing", 7))
	}

	got[TunableVMin] = 100
	if call[TunableVMin] != 4 || platform[TunableVMin] != 1 {
		t.Error("MergeTunables result shares memory with its inputs")
	}
	if MergeTunables() == nil {
		t.Error("MergeTunables() = nil, want empty map")
	}
}

func TestParityString(t *testing.T) {
	tests := []struct {
		parity Parity
		want   string
	}{
		{ParityNone, "N"},
		{ParityOdd, "O"},
		{ParityEven, "E"},
		{ParityMark, "M"},
		{ParitySpace, "S"},
	}
	for _, tt := range tests {
		if got := tt.parity.String(); got != tt.want {
			t.Errorf("Parity(%d).String() = %q, want %q", tt.parity, got, tt.want)
		}
	}
}
