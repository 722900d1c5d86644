package scheduler

import (
	"context"
	"net"
	"testing"
	"time"
)

func waitForState(t *testing.T, p *Pool, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		snap := p.Snapshot()
		idle := 0
		for _, s := range snap {
			if s == StateIdle {
				idle++
			}
		}
		if idle >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d idle workers, snapshot=%v", want, p.Snapshot())
}

func TestNewSpawnsMinChildrenAndReachesIdle(t *testing.T) {
	cfg := Config{MinChildren: 3, MaxChildren: 5, MinIdle: 1, MaxIdle: 3}
	p := New(cfg, nil, nil)
	waitForState(t, p, 3, time.Second)

	if len(p.Snapshot()) != 3 {
		t.Fatalf("expected 3 workers, got %d", len(p.Snapshot()))
	}
}

func TestStateStringsMatchSpecNames(t *testing.T) {
	cases := map[State]string{
		StateStarting: "STARTING",
		StateIdle:     "IDLE",
		StateBusy:     "BUSY",
		StateKilled:   "KILLED",
		StateError:    "ERROR",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestServeDispatchesConnectionToHandler(t *testing.T) {
	handled := make(chan struct{}, 1)
	cfg := Config{MinChildren: 1, MaxChildren: 2, MinIdle: 1, MaxIdle: 2}
	p := New(cfg, func(ctx context.Context, conn net.Conn) {
		conn.Close()
		handled <- struct{}{}
	}, nil)
	waitForState(t, p, 1, time.Second)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Serve(ctx, listener)

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatalf("handler was never invoked for the dispatched connection")
	}
}
