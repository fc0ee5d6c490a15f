package plugins

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pocsuite/internal/model"
	"pocsuite/internal/poc"
)

const defaultTimeout = 10 * time.Second

// All 返回内置的全部插件实例
func All() []poc.Poc {
	return []poc.Poc{
		NewRedisUnauth(),
		NewFTPAnonymous(),
		NewSSHWeakPassword(),
		NewHTTPDirListing(),
	}
}

// RegisterAll 把内置插件注册到 reg
func RegisterAll(reg *poc.Registry) {
	for _, p := range All() {
		reg.Register(p)
	}
}

func timeoutOf(cfg model.PocConfig) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return defaultTimeout
}

// hostPort 把目标解析为 host:port，支持 "host"、"host:port" 以及 "scheme://host:port" 三种形式
func hostPort(target string, defaultPort int) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", poc.URLError(target, errors.New("目标为空"))
	}

	var host, port string
	if strings.Contains(target, "://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", poc.URLError(target, err)
		}
		host, port = u.Hostname(), u.Port()
	} else if h, p, err := net.SplitHostPort(target); err == nil {
		host, port = h, p
	} else {
		host = strings.Trim(target, "[]")
	}

	if host == "" {
		return "", poc.URLError(target, errors.New("缺少主机名"))
	}
	if port == "" {
		port = strconv.Itoa(defaultPort)
	} else if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return "", poc.URLError(target, errors.New("无效的端口: "+port))
	}
	return net.JoinHostPort(host, port), nil
}
