package scanner

import (
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"os"
	"strings"
	"time"

	"pocsuite/internal/model"
	"pocsuite/internal/utils"
)

const (
	bannerBufferSize = 1024
	defaultReadWait  = 2 * time.Second
)

// ServiceIdentifier 通过横幅和端口号识别服务
type ServiceIdentifier struct {
	prober      *Prober
	dialTimeout time.Duration
	readTimeout time.Duration
	logger      *utils.Logger
}

func NewServiceIdentifier(prober *Prober, dialTimeout, readTimeout time.Duration) *ServiceIdentifier {
	if prober == nil {
		prober = NewProber(nil, nil)
	}
	if dialTimeout <= 0 {
		dialTimeout = DefaultTimeout
	}
	if readTimeout <= 0 {
		readTimeout = defaultReadWait
	}
	return &ServiceIdentifier{
		prober:      prober,
		dialTimeout: dialTimeout,
		readTimeout: readTimeout,
		logger:      utils.NewLogger("service"),
	}
}

// Identify 连接端口、发送换行探测并读取横幅，再按端口表和横幅内容分类。
// 没有读到横幅不是错误，Banner 留空即可。
func (si *ServiceIdentifier) Identify(ctx context.Context, addr netip.Addr, port uint16) (model.ServiceInfo, error) {
	banner, err := si.grabBanner(ctx, addr, port)
	if err != nil {
		return model.ServiceInfo{}, err
	}

	info := model.ServiceInfo{
		Name:   model.ServiceName(port),
		Banner: banner,
	}

	switch info.Name {
	case "ssh":
		info.Version = parseSSHVersion(banner)
	case "http":
		info.Version = parseHTTPServer(banner)
	case "mysql":
		info.Version = containsVersion(banner, "mysql")
	case "redis":
		info.Version = containsVersion(banner, "redis")
	}

	if banner != "" {
		si.logger.Debug("%s 横幅: %.100q", netip.AddrPortFrom(addr, port), banner)
	}
	return info, nil
}

func (si *ServiceIdentifier) grabBanner(ctx context.Context, addr netip.Addr, port uint16) (string, error) {
	conn, err := si.prober.open(ctx, addr, port, si.dialTimeout)
	if err != nil {
		return "", networkError("连接失败", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(si.readTimeout))

	if _, err := conn.Write([]byte("\r\n")); err != nil {
		if isQuiet(err) {
			return "", nil
		}
		return "", networkError("发送探测包失败", err)
	}

	buffer := make([]byte, bannerBufferSize)
	n, err := conn.Read(buffer)
	if n > 0 {
		return strings.ToValidUTF8(string(buffer[:n]), "�"), nil
	}
	if err != nil && !isQuiet(err) {
		return "", networkError("读取横幅失败", err)
	}
	return "", nil
}

// isQuiet 超时和对端关闭都等同于"没有横幅"
func isQuiet(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// parseSSHVersion 取 "SSH-" 开头横幅的第二个空白分隔字段
func parseSSHVersion(banner string) string {
	if !strings.HasPrefix(banner, "SSH-") {
		return ""
	}
	fields := strings.Fields(banner)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

// parseHTTPServer 取响应头中 "Server: " 行的值
func parseHTTPServer(banner string) string {
	for _, line := range strings.Split(banner, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, "Server: ") {
			return line[len("Server: "):]
		}
	}
	return ""
}

func containsVersion(banner, keyword string) string {
	if strings.Contains(banner, keyword) {
		return strings.TrimSpace(banner)
	}
	return ""
}
