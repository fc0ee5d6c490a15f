package scanner

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"pocsuite/internal/model"
	"pocsuite/internal/utils"
)

const (
	DefaultConcurrency  = 100
	DefaultTimeout      = 2 * time.Second
	DefaultLivenessPort = 80
)

// Options 扫描参数
type Options struct {
	// Concurrency 同时进行中的连接尝试上限
	Concurrency int

	// Timeout 每次连接的超时时间
	Timeout time.Duration

	// LivenessPort 存活探测使用的端口，只要该端口能连通即认为主机存活
	LivenessPort uint16

	// RateLimit 每秒最多发起的连接数，0 表示不限速
	RateLimit float64

	// MaxTargets 单次扫描允许展开的IPv6地址上限
	MaxTargets int

	// Dial 自定义拨号函数，为空时使用 net.Dialer
	Dial DialFunc
}

// HostScanner 并发主机与端口扫描器
type HostScanner struct {
	opts       Options
	prober     *Prober
	identifier *ServiceIdentifier
	logger     *utils.Logger
}

func NewHostScanner(opts Options) *HostScanner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.LivenessPort == 0 {
		opts.LivenessPort = DefaultLivenessPort
	}
	if opts.MaxTargets <= 0 {
		opts.MaxTargets = DefaultMaxTargets
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	prober := NewProber(opts.Dial, limiter)
	return &HostScanner{
		opts:       opts,
		prober:     prober,
		identifier: NewServiceIdentifier(prober, opts.Timeout, opts.Timeout),
		logger:     utils.NewLogger("scanner"),
	}
}

// Scan 解析目标与端口规格后执行扫描，只返回存活主机。
// 规格解析失败时在任何网络操作之前直接返回错误。
func (hs *HostScanner) Scan(ctx context.Context, targetSpec, portSpec string) ([]model.Host, error) {
	parser := &TargetParser{MaxTargets: hs.opts.MaxTargets}
	addrs, err := parser.Parse(targetSpec)
	if err != nil {
		return nil, err
	}

	ports, err := ParsePorts(portSpec)
	if err != nil {
		return nil, err
	}

	return hs.ScanAddrs(ctx, addrs, ports)
}

type portFinding struct {
	index   int
	port    uint16
	service model.ServiceInfo
}

// ScanAddrs 对已解析的地址和端口执行存活探测、端口探测与服务识别
func (hs *HostScanner) ScanAddrs(ctx context.Context, addrs []netip.Addr, ports []uint16) ([]model.Host, error) {
	start := time.Now()
	hs.logger.Info("开始扫描 %d 个地址, %d 个端口, 并发数 %d", len(addrs), len(ports), hs.opts.Concurrency)

	pool, err := ants.NewPool(hs.opts.Concurrency, ants.WithPanicHandler(func(r interface{}) {
		hs.logger.Error("扫描任务 panic: %v", r)
	}))
	if err != nil {
		return nil, fmt.Errorf("创建工作池失败: %w", err)
	}
	defer pool.Release()

	alive, err := hs.checkAlive(ctx, pool, addrs)
	if err != nil {
		return nil, err
	}

	found, err := hs.scanPorts(ctx, pool, addrs, alive, ports)
	if err != nil {
		return nil, err
	}

	var hosts []model.Host
	for i, addr := range addrs {
		if !alive[i] {
			continue
		}
		services := found[i]
		if services == nil {
			services = make(map[uint16]model.ServiceInfo)
		}
		hosts = append(hosts, model.Host{
			Address: addr,
			IsAlive: true,
			Ports:   services,
		})
	}

	if err := ctx.Err(); err != nil {
		return hosts, err
	}

	hs.logger.Info("扫描完成，存活主机 %d 个，耗时 %v", len(hosts), time.Since(start).Truncate(time.Millisecond))
	return hosts, nil
}

// checkAlive 对每个地址的存活端口做一次连接，结果按地址下标存放
func (hs *HostScanner) checkAlive(ctx context.Context, pool *ants.Pool, addrs []netip.Addr) ([]bool, error) {
	alive := make([]bool, len(addrs))
	var wg sync.WaitGroup

	for i, addr := range addrs {
		i, addr := i, addr
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			// 每个任务只写自己的下标，无需加锁
			alive[i] = hs.prober.TryConnect(ctx, addr, hs.opts.LivenessPort, hs.opts.Timeout)
			if alive[i] {
				hs.logger.Debug("主机 %s 存活", addr)
			}
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("提交存活探测任务失败: %w", err)
		}
	}

	wg.Wait()
	return alive, nil
}

func (hs *HostScanner) scanPorts(ctx context.Context, pool *ants.Pool, addrs []netip.Addr, alive []bool, ports []uint16) (map[int]map[uint16]model.ServiceInfo, error) {
	findings := make(chan portFinding, hs.opts.Concurrency)
	found := make(map[int]map[uint16]model.ServiceInfo)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for f := range findings {
			if found[f.index] == nil {
				found[f.index] = make(map[uint16]model.ServiceInfo)
			}
			found[f.index][f.port] = f.service
		}
	}()

	var (
		wg        sync.WaitGroup
		submitErr error
	)

submit:
	for i, addr := range addrs {
		if !alive[i] {
			continue
		}
		for _, port := range ports {
			i, addr, port := i, addr, port
			wg.Add(1)
			err := pool.Submit(func() {
				defer wg.Done()
				if !hs.prober.TryConnect(ctx, addr, port, hs.opts.Timeout) {
					return
				}
				service, err := hs.identifier.Identify(ctx, addr, port)
				if err != nil {
					// 识别失败只丢弃该端口，不影响整体扫描
					hs.logger.Debug("端口 %s 服务识别失败: %v", netip.AddrPortFrom(addr, port), err)
					return
				}
				hs.logger.Debug("发现开放端口: %s (%s)", netip.AddrPortFrom(addr, port), service.Name)
				findings <- portFinding{index: i, port: port, service: service}
			})
			if err != nil {
				wg.Done()
				submitErr = fmt.Errorf("提交端口扫描任务失败: %w", err)
				break submit
			}
		}
	}

	wg.Wait()
	close(findings)
	<-done

	if submitErr != nil {
		return nil, submitErr
	}
	return found, nil
}
