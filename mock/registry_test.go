package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	serial "github.com/allbin/go-serial-bindings"
)

func TestCreatePortDefaults(t *testing.T) {
	r := newRegistry(t)
	if err := r.CreatePort("/dev/ROBOT"); err != nil {
		t.Fatalf("CreatePort failed: %v", err)
	}

	st, ok := r.Snapshot("/dev/ROBOT")
	if !ok {
		t.Fatal("Snapshot() did not find the port")
	}
	if !st.Echo {
		t.Error("Echo = false, want true by default")
	}
	if string(st.ReadyData) != DefaultReadyData {
		t.Errorf("ReadyData = %q, want %q", st.ReadyData, DefaultReadyData)
	}
	if st.Info.Manufacturer != DefaultManufacturer || st.Info.Path != "/dev/ROBOT" {
		t.Errorf("Info = %+v", st.Info)
	}
	if st.OpenOptions != nil {
		t.Errorf("OpenOptions = %+v, want nil for a closed port", st.OpenOptions)
	}

	if err := r.CreatePort(""); !errors.Is(err, serial.ErrInvalidArgument) {
		t.Errorf("CreatePort(\"\") error = %v, want %v", err, serial.ErrInvalidArgument)
	}
	if _, ok := r.Snapshot("/dev/missing"); ok {
		t.Error("Snapshot() found an unregistered port")
	}
}

func TestListInRegistrationOrder(t *testing.T) {
	r := newRegistry(t)
	ports := []struct {
		path string
		opts []PortOption
	}{
		{"/dev/b", []PortOption{WithSerialNumber("2")}},
		{"/dev/a", []PortOption{
			WithManufacturer("Acme"),
			WithSerialNumber("1"),
			WithPnpID("usb-Acme_1"),
			WithLocationID("1-1.2"),
			WithVendorID("0403"),
			WithProductID("6001"),
		}},
		{"/dev/c", nil},
	}
	for _, p := range ports {
		if err := r.CreatePort(p.path, p.opts...); err != nil {
			t.Fatalf("CreatePort(%s) failed: %v", p.path, err)
		}
	}
	// replacing keeps the original position
	if err := r.CreatePort("/dev/b", WithSerialNumber("22")); err != nil {
		t.Fatalf("CreatePort failed: %v", err)
	}

	infos, err := await(t, newBinding(t, r).List())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []serial.PortInfo{
		{Path: "/dev/b", Manufacturer: DefaultManufacturer, SerialNumber: "22"},
		{
			Path:         "/dev/a",
			Manufacturer: "Acme",
			SerialNumber: "1",
			PnpID:        "usb-Acme_1",
			LocationID:   "1-1.2",
			VendorID:     "0403",
			ProductID:    "6001",
		},
		{Path: "/dev/c", Manufacturer: DefaultManufacturer},
	}
	if len(infos) != len(want) {
		t.Fatalf("List returned %d ports, want %d", len(infos), len(want))
	}
	for i := range want {
		if infos[i] != want[i] {
			t.Errorf("port %d = %+v, want %+v", i, infos[i], want[i])
		}
	}
}

func TestReset(t *testing.T) {
	r := newRegistry(t)
	if err := r.CreatePort("P"); err != nil {
		t.Fatalf("CreatePort failed: %v", err)
	}
	if err := r.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	infos, err := await(t, newBinding(t, r).List())
	if err != nil || len(infos) != 0 {
		t.Errorf("List after Reset = %v, %v, want no ports", infos, err)
	}
	f := must(newBinding(t, r).Open("P", serial.OpenOptions{}))
	if _, err := await(t, f); !errors.Is(err, serial.ErrPortNotFound) {
		t.Errorf("Open after Reset error = %v, want %v", err, serial.ErrPortNotFound)
	}
}

func TestSettleWaitsForFollowUps(t *testing.T) {
	r := newRegistry(t)
	if err := r.CreatePort("P"); err != nil {
		t.Fatalf("CreatePort failed: %v", err)
	}
	b := newBinding(t, r)
	mustOpen(t, b, "P", serial.OpenOptions{})

	must(b.Write([]byte("hello")))
	settle(t, r)

	st, _ := r.Snapshot("P")
	if string(st.Data) != "READYhello" {
		t.Errorf("buffer after Settle = %q, want %q", st.Data, "READYhello")
	}
}

func TestSettleHonoursContext(t *testing.T) {
	r := newRegistry(t)
	gate := make(chan struct{})
	defer close(gate)
	if err := r.sched.post(func() { <-gate }); err != nil {
		t.Fatalf("post failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Settle(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Settle error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestClosedRegistry(t *testing.T) {
	r := NewRegistry()
	b, err := New(r, noDisconnect)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	r.Close()
	r.Close()

	if err := r.CreatePort("P"); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("CreatePort error = %v, want %v", err, ErrRegistryClosed)
	}
	if _, err := await(t, b.Get()); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("Get error = %v, want %v", err, ErrRegistryClosed)
	}
	if err := r.Settle(context.Background()); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("Settle error = %v, want %v", err, ErrRegistryClosed)
	}
}
