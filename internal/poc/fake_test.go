package poc

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"pocsuite/internal/model"
)

// fakePoc 以目标名决定行为：包含 "vuln" 视为存在漏洞，包含 "down" 视为连接失败
type fakePoc struct {
	name      string
	exploited int32
	verified  int32
}

func (f *fakePoc) Name() string        { return f.name }
func (f *fakePoc) Description() string { return "fake check for " + f.name }
func (f *fakePoc) Info() model.VulnInfo {
	return model.VulnInfo{Name: "Fake " + f.name, CVEID: "CVE-2024-0001", Severity: model.SeverityHigh, Product: "fake"}
}

func (f *fakePoc) Verify(ctx context.Context, cfg model.PocConfig) (model.PocResult, error) {
	atomic.AddInt32(&f.verified, 1)
	if strings.Contains(cfg.Target, "down") {
		return model.PocResult{}, RequestError("连接失败", fmt.Errorf("dial %s: connection refused", cfg.Target))
	}
	vulnerable := strings.Contains(cfg.Target, "vuln")
	return NewResult(f, cfg, vulnerable, "checked"), nil
}

func (f *fakePoc) Exploit(ctx context.Context, cfg model.PocConfig) (model.PocResult, error) {
	if err := RequireVerified(ctx, f, cfg); err != nil {
		return model.PocResult{}, err
	}
	atomic.AddInt32(&f.exploited, 1)
	return NewResult(f, cfg, true, "exploited"), nil
}
