package recon

import (
	"context"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

type dialBehavior int

const (
	dialOpen dialBehavior = iota
	dialRefuse
	dialDrop
	dialUnreachable
	dialPanic
)

// fakeDialer answers connects from a per-port behavior table and records
// every attempt.
type fakeDialer struct {
	behaviors map[uint16]dialBehavior
	fallback  dialBehavior
	delays    map[uint16]time.Duration
	onDial    func(port uint16)

	active    atomic.Int32
	maxActive atomic.Int32

	mu     sync.Mutex
	dialed []string
}

func newFakeDialer(fallback dialBehavior) *fakeDialer {
	return &fakeDialer{
		behaviors: map[uint16]dialBehavior{},
		fallback:  fallback,
		delays:    map[uint16]time.Duration{},
	}
}

func (d *fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	n := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		m := d.maxActive.Load()
		if n <= m || d.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	d.mu.Lock()
	d.dialed = append(d.dialed, address)
	d.mu.Unlock()

	_, portStr, _ := net.SplitHostPort(address)
	p, _ := strconv.Atoi(portStr)
	port := uint16(p)

	if d.onDial != nil {
		d.onDial(port)
	}

	if delay, ok := d.delays[port]; ok {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &net.OpError{Op: "dial", Net: network, Err: ctx.Err()}
		}
	}

	behavior, ok := d.behaviors[port]
	if !ok {
		behavior = d.fallback
	}

	switch behavior {
	case dialOpen:
		client, server := net.Pipe()
		_ = server.Close()
		return client, nil
	case dialRefuse:
		return nil, &net.OpError{Op: "dial", Net: network, Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
	case dialUnreachable:
		return nil, &net.OpError{Op: "dial", Net: network, Err: os.NewSyscallError("connect", syscall.EHOSTUNREACH)}
	case dialPanic:
		panic("dialer exploded")
	default:
		<-ctx.Done()
		return nil, &net.OpError{Op: "dial", Net: network, Err: ctx.Err()}
	}
}

func (d *fakeDialer) Dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dialed...)
}
