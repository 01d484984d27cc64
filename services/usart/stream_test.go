package usart

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"usart-go/errcode"
	"usart-go/services/usart/config"
	"usart-go/services/usart/platform"

	"tinygo.org/x/drivers"
)

// ringUART is a drivers.UART with a software transmit ring of fixed free
// space. Its blocking Write waits until the test ends, like a driver whose
// ring never drains.
type ringUART struct {
	mu   sync.Mutex
	free int
	out  []byte
	gate chan struct{}
}

func (u *ringUART) Buffered() int              { return 0 }
func (u *ringUART) Read(p []byte) (int, error) { return 0, nil }

func (u *ringUART) Write(p []byte) (int, error) {
	<-u.gate
	return len(p), nil
}

func (u *ringUART) TxFree() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.free
}

func (u *ringUART) TryWrite(p []byte) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := min(len(p), u.free)
	u.out = append(u.out, p[:n]...)
	u.free -= n
	return n
}

func (u *ringUART) setFree(n int) {
	u.mu.Lock()
	u.free = n
	u.mu.Unlock()
}

func (u *ringUART) written() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]byte(nil), u.out...)
}

func TestStream_PolledTxQueuesThenBusyWhenDriverFull(t *testing.T) {
	u := &ringUART{gate: make(chan struct{})}
	defer close(u.gate)

	tbl := table(config.ModePolled, config.ModePolled)
	ctx, cancel := context.WithCancel(context.Background())
	st := platform.NewStream(ctx, map[config.Peripheral]drivers.UART{tbl[0].Peripheral: u})
	defer func() {
		cancel()
		st.Close()
	}()

	const capacity = 4
	e, err := New(st, tbl, Options{QueueCapacity: capacity})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Init(0); err != nil {
		t.Fatalf("Init: %v", err)
	}

	res := make(chan error, 1)
	go func() {
		for k := 0; k < capacity; k++ {
			if err := e.SendByte(0, byte('a'+k)); err != nil {
				res <- err
				return
			}
		}
		res <- e.SendByte(0, 'z')
	}()
	select {
	case err := <-res:
		if !errors.Is(err, errcode.Busy) {
			t.Fatalf("err=%v want busy", err)
		}
	case <-time.After(time.Second):
		t.Fatal("SendByte blocked on a full driver")
	}
	if tx, _, _ := e.Pending(0); tx != capacity {
		t.Fatalf("pending tx=%d want %d", tx, capacity)
	}
	if got := u.written(); len(got) != 0 {
		t.Fatalf("driver took %q while full", got)
	}

	u.setFree(2)
	e.TxDrain()
	if got := u.written(); !bytes.Equal(got, []byte("ab")) {
		t.Fatalf("written=%q want ab", got)
	}
	u.setFree(8)
	e.TxDrain()
	if got := u.written(); !bytes.Equal(got, []byte("abcd")) {
		t.Fatalf("written=%q want abcd", got)
	}
	if tx, _, _ := e.Pending(0); tx != 0 {
		t.Fatalf("pending tx=%d after drain", tx)
	}
	if s, _ := e.Stats(0); s.TxBusy != 1 {
		t.Fatalf("TxBusy=%d want 1", s.TxBusy)
	}
}
