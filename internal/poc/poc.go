package poc

import (
	"context"

	"pocsuite/internal/model"
)

// Poc 漏洞检测插件需要实现的接口。
//
// 插件注册后会被多个目标并发复用，实现中不能保存单次调用的可变状态。
type Poc interface {
	// Name 插件名，同时作为注册表的键
	Name() string
	Description() string
	Info() model.VulnInfo

	// Verify 只做检测，除观察漏洞信号所必需的操作外不能对目标产生副作用
	Verify(ctx context.Context, cfg model.PocConfig) (model.PocResult, error)

	// Exploit 必须先确认漏洞存在（见 RequireVerified），未确认时返回 ErrExecution
	Exploit(ctx context.Context, cfg model.PocConfig) (model.PocResult, error)
}

// RequireVerified 重新执行 Verify，只有验证成功才允许继续利用
func RequireVerified(ctx context.Context, p Poc, cfg model.PocConfig) error {
	res, err := p.Verify(ctx, cfg)
	if err != nil {
		return err
	}
	if !res.Success {
		return ExecutionError("目标 %s 不存在漏洞，拒绝执行利用", cfg.Target)
	}
	return nil
}

// NewResult 构造属于插件 p 的结果
func NewResult(p Poc, cfg model.PocConfig, success bool, details string) model.PocResult {
	return model.PocResult{
		Success: success,
		Name:    p.Name(),
		Target:  cfg.Target,
		Details: details,
	}
}
