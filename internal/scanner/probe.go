package scanner

import (
	"context"
	"net"
	"net/netip"
	"time"

	"golang.org/x/time/rate"

	"pocsuite/internal/utils"
)

// DialFunc 建立TCP连接的函数，测试中可替换为内存连接
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

func defaultDial() DialFunc {
	var d net.Dialer
	return d.DialContext
}

// Prober 单次、带超时的TCP连接探测
type Prober struct {
	dial    DialFunc
	limiter *rate.Limiter
	logger  *utils.Logger
}

// NewProber 创建探测器，limiter 为 nil 时不限速
func NewProber(dial DialFunc, limiter *rate.Limiter) *Prober {
	if dial == nil {
		dial = defaultDial()
	}
	return &Prober{
		dial:    dial,
		limiter: limiter,
		logger:  utils.NewLogger("probe"),
	}
}

// TryConnect 尝试一次TCP握手，仅在超时内成功连接时返回 true。
// 不重试，超时与拒绝一样视为端口关闭。
func (p *Prober) TryConnect(ctx context.Context, addr netip.Addr, port uint16, timeout time.Duration) bool {
	conn, err := p.open(ctx, addr, port, timeout)
	if err != nil {
		p.logger.Debug("端口 %s 连接失败: %v", netip.AddrPortFrom(addr, port), err)
		return false
	}
	conn.Close()
	return true
}

func (p *Prober) open(ctx context.Context, addr netip.Addr, port uint16, timeout time.Duration) (net.Conn, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return p.dial(dialCtx, "tcp", netip.AddrPortFrom(addr, port).String())
}
