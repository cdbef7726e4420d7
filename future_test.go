package serial

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFutureSettlesOnce(t *testing.T) {
	f := NewFuture[int]()
	if f.Ready() {
		t.Fatal("new future is ready")
	}

	f.Fulfill(1)
	f.Reject(errors.New("late"))
	f.Fulfill(2)

	v, err := f.Wait(context.Background())
	if err != nil || v != 1 {
		t.Errorf("Wait() = %d, %v, want 1, nil", v, err)
	}
}

func TestFutureResolve(t *testing.T) {
	boom := errors.New("boom")

	ok := NewFuture[string]()
	ok.Resolve("done", nil)
	if v, err := ok.Wait(context.Background()); v != "done" || err != nil {
		t.Errorf("Wait() = %q, %v, want done, nil", v, err)
	}

	bad := NewFuture[string]()
	bad.Resolve("ignored", boom)
	if v, err := bad.Wait(context.Background()); v != "" || !errors.Is(err, boom) {
		t.Errorf("Wait() = %q, %v, want empty, %v", v, err, boom)
	}
}

func TestFutureWaitContext(t *testing.T) {
	f := NewFuture[struct{}]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
	if f.Ready() {
		t.Error("cancelled wait settled the future")
	}

	go f.Fulfill(struct{}{})
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() was not closed")
	}
}
