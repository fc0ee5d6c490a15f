package scanner

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// fakeNet 内存网络：open 中登记的 "ip:port" 可连接，并在收到探测包后返回对应横幅
type fakeNet struct {
	mu    sync.Mutex
	open  map[string]string
	calls map[string]int

	delay       time.Duration
	inflight    int32
	maxInflight int32
}

func newFakeNet(open map[string]string) *fakeNet {
	return &fakeNet{
		open:  open,
		calls: make(map[string]int),
	}
}

func (f *fakeNet) dial(ctx context.Context, network, address string) (net.Conn, error) {
	f.mu.Lock()
	f.calls[address]++
	banner, ok := f.open[address]
	f.mu.Unlock()

	cur := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		peak := atomic.LoadInt32(&f.maxInflight)
		if cur <= peak || atomic.CompareAndSwapInt32(&f.maxInflight, peak, cur) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if !ok {
		return nil, &net.OpError{Op: "dial", Net: network, Err: errors.New("connection refused")}
	}

	client, server := net.Pipe()
	go func() {
		defer server.Close()
		server.SetDeadline(time.Now().Add(time.Second))
		buf := make([]byte, 16)
		if _, err := server.Read(buf); err != nil {
			return
		}
		if banner != "" {
			server.Write([]byte(banner))
		}
	}()
	return client, nil
}

func (f *fakeNet) callCount(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[address]
}

func (f *fakeNet) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}
