// Package scheduler implements C6's prefork-style worker pool: spec
// §4.6 describes Apache-MPM fork/socketpair semantics that Go has no
// direct analogue for (no fork, no pid), so each "child" is a goroutine
// holding one end of a net.Pipe, and the parent↔child command channel
// carries the spec's exact 6-byte frames over that pipe instead of a
// forked child's socketpair. Every other observable: the state table,
// lowest-index-idle selection, overload flag, ping/read timeouts, and
// the one-per-pass pool adjustment, is reproduced as specified.
//
// Grounded in concurrency style on the teacher's pkg/filter/spam_filter.go
// processEmailsParallel (worker pool over channels, sync/atomic
// counters, sync.WaitGroup fan-in), generalized from a one-shot batch
// pool into a long-lived accept-dispatch pool.
package scheduler

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is a worker's lifecycle state, per spec §4.6.
type State int

const (
	StateStarting State = iota
	StateIdle
	StateBusy
	StateKilled
	StateError
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateIdle:
		return "IDLE"
	case StateBusy:
		return "BUSY"
	case StateKilled:
		return "KILLED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

const (
	// TOUTPingInterval is how often idle parents ping children absent
	// other activity, spec §4.6.
	TOUTPingInterval = 150 * time.Second
	// TOUTReadMax bounds how long a read retry loop waits before the
	// parent gives up on a child and marks it dead.
	TOUTReadMax = 300 * time.Second
	frameSize   = 6
)

// Command frames, fixed 6 bytes, parent-to-child.
var (
	frameAccept = [frameSize]byte{'A', 0, 0, 0, 0, '\n'}
	framePing   = [frameSize]byte{'P', 0, 0, 0, 0, '\n'}
)

// Handler processes one accepted connection; workers call it while
// BUSY.
type Handler func(ctx context.Context, conn net.Conn)

// Config bounds pool sizing, mirroring spec §4.6's min/max children and
// min/max idle knobs.
type Config struct {
	MinChildren int
	MaxChildren int
	MinIdle     int
	MaxIdle     int
}

// DefaultConfig matches commonly deployed defaults: a handful of warm
// children, room to grow under load.
func DefaultConfig() Config {
	return Config{MinChildren: 2, MaxChildren: 16, MinIdle: 1, MaxIdle: 4}
}

// worker is the parent's view of one child: its pipe end and state,
// guarded by Pool.mu.
type worker struct {
	index int
	conn  net.Conn // parent's end of the net.Pipe
	state State
	done  chan struct{}
}

// Pool is the parent scheduler: it owns every worker's pipe end, the
// listen socket, and drives the spec's main loop.
type Pool struct {
	cfg     Config
	handler Handler
	log     *logrus.Logger

	mu       sync.Mutex
	workers  []*worker
	overload bool
	pending  net.Conn

	nextIndex int
}

// New constructs a Pool with MinChildren workers already started.
func New(cfg Config, handler Handler, log *logrus.Logger) *Pool {
	if log == nil {
		log = logrus.New()
	}
	p := &Pool{cfg: cfg, handler: handler, log: log}
	for i := 0; i < cfg.MinChildren; i++ {
		p.spawn()
	}
	return p
}

// spawn starts one child goroutine over a fresh net.Pipe and registers
// its worker record as STARTING, then IDLE once the child announces
// itself.
func (p *Pool) spawn() *worker {
	parentConn, childConn := net.Pipe()

	p.mu.Lock()
	w := &worker{index: p.nextIndex, conn: parentConn, state: StateStarting, done: make(chan struct{})}
	p.nextIndex++
	p.workers = append(p.workers, w)
	p.mu.Unlock()

	go p.childLoop(w.index, childConn)

	// Drain the child's status frames: net.Pipe is unbuffered, so an
	// unread status write would block the child forever. The child
	// records its own state through setState.
	go func() {
		buf := make([]byte, frameSize)
		for {
			if _, err := parentConn.Read(buf); err != nil {
				return
			}
		}
	}()
	return w
}

// childLoop is the "forked" child's main loop: announce idle, then wait
// for frames; on A, accept one connection and serve it; on P, continue
// waiting; on EOF, exit.
func (p *Pool) childLoop(index int, conn net.Conn) {
	defer conn.Close()

	writeStatus(conn, 'I', index)
	p.setState(index, StateIdle)

	buf := make([]byte, frameSize)
	for {
		if _, err := readFrame(conn, buf); err != nil {
			return // parent closed the pipe: EOF, exit cleanly
		}
		switch buf[0] {
		case 'A':
			writeStatus(conn, 'B', index)
			p.setState(index, StateBusy)
			if clientConn := p.takePending(); clientConn != nil && p.handler != nil {
				p.handler(context.Background(), clientConn)
			}
			writeStatus(conn, 'I', index)
			p.setState(index, StateIdle)
		case 'P':
			// ping acknowledged implicitly by staying responsive
		}
	}
}

func (p *Pool) takePending() net.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.pending
	p.pending = nil
	return c
}

func (p *Pool) setState(index int, s State) {
	p.mu.Lock()
	for _, w := range p.workers {
		if w.index == index {
			w.state = s
			break
		}
	}
	p.mu.Unlock()
}

// writeStatus sends a child→parent frame: letter + big-endian uint32
// index (standing in for pid, Go has none) + newline, retrying
// indefinitely on transient errors per spec §4.6's write contract.
func writeStatus(conn net.Conn, letter byte, index int) {
	var frame [frameSize]byte
	frame[0] = letter
	binary.BigEndian.PutUint32(frame[1:5], uint32(index))
	frame[5] = '\n'
	for {
		if _, err := conn.Write(frame[:]); err == nil {
			return
		}
		time.Sleep(5 * time.Second)
	}
}

// readFrame reads exactly one 6-byte frame, accumulating partial reads,
// per spec §4.6's read contract. The net.Pipe transport has no
// EAGAIN/EWOULDBLOCK of its own; TOUTReadMax is enforced via
// SetReadDeadline where the net.Conn implementation supports it.
func readFrame(conn net.Conn, buf []byte) (int, error) {
	conn.SetReadDeadline(time.Now().Add(TOUTReadMax))
	n := 0
	for n < frameSize {
		m, err := conn.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Serve runs the parent main loop against listener until ctx is
// canceled: dispatch incoming connections to the lowest-index IDLE
// child, ping idle children on a timeout, and run the pool-adjustment
// pass each iteration, per spec §4.6 steps 1-5.
func (p *Pool) Serve(ctx context.Context, listener net.Listener) error {
	connCh := make(chan net.Conn)
	errCh := make(chan error, 1)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case errCh <- err:
				default:
				}
				return
			}
			select {
			case connCh <- conn:
			case <-ctx.Done():
				conn.Close()
				return
			}
		}
	}()

	ticker := time.NewTicker(TOUTPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.shutdown()
			return ctx.Err()
		case err := <-errCh:
			return fmt.Errorf("scheduler: listener accept failed: %w", err)
		case conn := <-connCh:
			p.dispatch(conn)
		case <-ticker.C:
			p.pingIdle()
		}
		p.adjustPool()
	}
}

// dispatch implements step 2: pick the lowest-index IDLE worker, send
// it A, and hand it the connection; if none is IDLE, set the overload
// flag and hold the connection as pending.
func (p *Pool) dispatch(conn net.Conn) {
	p.mu.Lock()
	var target *worker
	for _, w := range p.workers {
		if w.state == StateIdle {
			target = w
			break
		}
	}
	if target == nil {
		p.overload = true
		p.pending = conn
		p.mu.Unlock()
		return
	}
	p.pending = conn
	p.overload = false
	p.mu.Unlock()

	if _, err := target.conn.Write(frameAccept[:]); err != nil {
		p.markError(target.index)
	}
}

// pingIdle implements step 4: broadcast P to every IDLE worker; a write
// failure marks that worker ERROR.
func (p *Pool) pingIdle() {
	p.mu.Lock()
	idle := make([]*worker, 0, len(p.workers))
	for _, w := range p.workers {
		if w.state == StateIdle {
			idle = append(idle, w)
		}
	}
	p.mu.Unlock()

	for _, w := range idle {
		if _, err := w.conn.Write(framePing[:]); err != nil {
			p.markError(w.index)
		}
	}
}

func (p *Pool) markError(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.workers {
		if w.index == index {
			w.state = StateError
			w.conn.Close()
			p.log.WithField("worker", index).Warn("scheduler: worker marked ERROR, scheduling kill")
		}
	}
}

// adjustPool implements the spec's pool-adjustment pass: add one
// worker when idle count is below MinIdle (and under MaxChildren), or
// kill the highest-index IDLE worker when idle count exceeds MaxIdle
// (and above MinChildren). At most one child is added or removed per
// call.
func (p *Pool) adjustPool() {
	p.mu.Lock()
	numIdle, numServers := 0, 0
	var highestIdle *worker
	for _, w := range p.workers {
		if w.state == StateKilled || w.state == StateError {
			continue
		}
		numServers++
		if w.state == StateIdle {
			numIdle++
			if highestIdle == nil || w.index > highestIdle.index {
				highestIdle = w
			}
		}
	}
	shouldSpawn := numIdle < p.cfg.MinIdle && numServers < p.cfg.MaxChildren
	shouldKill := numIdle > p.cfg.MaxIdle && numServers > p.cfg.MinChildren && highestIdle != nil
	p.mu.Unlock()

	switch {
	case shouldSpawn:
		p.spawn()
	case shouldKill:
		p.kill(highestIdle)
	}
}

// kill marks a worker KILLED and closes its pipe end; the child
// observes EOF on its next frame read and exits.
func (p *Pool) kill(w *worker) {
	p.mu.Lock()
	w.state = StateKilled
	p.mu.Unlock()
	w.conn.Close()
	close(w.done)
}

// shutdown closes every worker's pipe end so all children observe EOF
// and exit cleanly, per spec §4.6's cancellation contract.
func (p *Pool) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.workers {
		w.conn.Close()
	}
}

// Snapshot returns each worker's current state, for diagnostics/tests.
func (p *Pool) Snapshot() map[int]State {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[int]State, len(p.workers))
	for _, w := range p.workers {
		out[w.index] = w.state
	}
	return out
}
