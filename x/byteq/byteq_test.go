package byteq

import (
	"errors"
	"sync"
	"testing"
)

func TestOrderAcrossWrap(t *testing.T) {
	q := New(7)

	// Produce a known sequence [0..N) with partial progress on both sides,
	// forcing frequent wraps.
	const N = 2000
	var got []byte
	next := 0
	for len(got) < N {
		for k := 0; k < 5 && next < N; k++ {
			if !q.TryPush(byte(next)) {
				break
			}
			next++
		}
		for k := 0; k < 3; k++ {
			b, ok := q.TryPop()
			if !ok {
				break
			}
			got = append(got, b)
		}
	}
	for i := 0; i < N; i++ {
		if got[i] != byte(i) {
			t.Fatalf("mismatch at %d: got=%d want=%d", i, got[i], byte(i))
		}
	}
}

func TestFullRejectsWithoutCorruption(t *testing.T) {
	q := New(200)
	for i := 0; i < 200; i++ {
		if !q.TryPush(byte(i)) {
			t.Fatalf("push %d rejected below capacity", i)
		}
	}
	if q.TryPush(0xEE) {
		t.Fatal("push beyond capacity accepted")
	}
	if q.Len() != 200 {
		t.Fatalf("len=%d want 200", q.Len())
	}
	for i := 0; i < 200; i++ {
		b, ok := q.TryPop()
		if !ok || b != byte(i) {
			t.Fatalf("pop %d: got %d ok=%v", i, b, ok)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("pop on empty succeeded")
	}
}

func TestReadableEdge(t *testing.T) {
	q := New(2)

	select {
	case <-q.Readable():
		t.Fatal("readable on empty queue")
	default:
	}

	q.TryPush(1)
	select {
	case <-q.Readable():
	default:
		t.Fatal("missing readable edge on 0->1")
	}
	q.TryPush(2) // no second edge while non-empty
	select {
	case <-q.Readable():
		t.Fatal("readable edge without 0->1 transition")
	default:
	}

	q.TryPop()
	q.TryPop()
	q.TryPush(3)
	select {
	case <-q.Readable():
	default:
		t.Fatal("missing readable edge after draining")
	}
}

func TestConcurrentProducersKeepCount(t *testing.T) {
	q := New(64)
	var wg sync.WaitGroup
	var mu sync.Mutex
	pushed, popped := 0, 0

	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if q.TryPush(byte(i)) {
					mu.Lock()
					pushed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 4000; i++ {
			if _, ok := q.TryPop(); ok {
				mu.Lock()
				popped++
				mu.Unlock()
			}
		}
	}()
	wg.Wait()

	if rest := q.Len(); pushed != popped+rest {
		t.Fatalf("pushed=%d popped=%d left=%d", pushed, popped, rest)
	}
	if q.Len() > q.Cap() {
		t.Fatalf("len %d exceeds cap %d", q.Len(), q.Cap())
	}
}

func TestHeapBudget(t *testing.T) {
	h := NewHeap(300)
	if _, err := h.New(200); err != nil {
		t.Fatalf("first alloc: %v", err)
	}
	if _, err := h.New(200); !errors.Is(err, ErrNoMemory) {
		t.Fatalf("second alloc err=%v want ErrNoMemory", err)
	}
	if _, err := h.New(100); err != nil {
		t.Fatalf("alloc filling the budget: %v", err)
	}
	if _, err := h.New(1); !errors.Is(err, ErrNoMemory) {
		t.Fatalf("alloc past budget err=%v want ErrNoMemory", err)
	}

	u := NewHeap(0)
	for i := 0; i < 10; i++ {
		if _, err := u.New(200); err != nil {
			t.Fatalf("unbounded heap failed: %v", err)
		}
	}
}
