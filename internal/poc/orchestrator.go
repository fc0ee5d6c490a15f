package poc

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pocsuite/internal/model"
	"pocsuite/internal/utils"
)

// Orchestrator 从注册表取出插件，对每个目标执行 verify / exploit 并汇总结果
type Orchestrator struct {
	registry    *Registry
	concurrency int
	logger      *utils.Logger
}

// NewOrchestrator concurrency 为同时处理的目标数，小于1时逐个处理
func NewOrchestrator(registry *Registry, concurrency int) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		registry:    registry,
		concurrency: concurrency,
		logger:      utils.NewLogger("orchestrator"),
	}
}

type runIDKey struct{}

// WithRunID 在 ctx 中携带执行编号，Run 记录日志时沿用该编号
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID 取出 ctx 中的执行编号，没有时返回空串
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// SplitTargets 按逗号拆分目标列表并去除空白
func SplitTargets(targets string) []string {
	var out []string
	for _, t := range strings.Split(targets, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Run 对逗号分隔的每个目标执行插件。
// 插件不存在时返回 ErrPocNotFound 且不处理任何目标；
// 单个目标的失败记录为失败结果，不会中断其他目标。结果顺序与目标输入顺序一致。
func (o *Orchestrator) Run(ctx context.Context, pocName, targets string, verify, exploit bool, base model.PocConfig) ([]model.PocResult, error) {
	return o.RunTargets(ctx, pocName, SplitTargets(targets), verify, exploit, base)
}

// RunTargets 与 Run 相同，目标已拆分
func (o *Orchestrator) RunTargets(ctx context.Context, pocName string, targets []string, verify, exploit bool, base model.PocConfig) ([]model.PocResult, error) {
	runID := RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	log := o.logger.With("run", runID)

	p, ok := o.registry.Get(pocName)
	if !ok {
		log.Error("未找到POC插件: %s", pocName)
		return nil, &Error{Kind: ErrPocNotFound, Msg: pocName}
	}

	log.Info("使用 %s 检测 %d 个目标 (verify=%v, exploit=%v)", pocName, len(targets), verify, exploit)

	slots := make([][]model.PocResult, len(targets))

	g := new(errgroup.Group)
	g.SetLimit(o.concurrency)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			slots[i] = o.runTarget(ctx, log, p, target, verify, exploit, base)
			return nil
		})
	}
	g.Wait()

	var results []model.PocResult
	succeeded := 0
	for _, slot := range slots {
		for _, res := range slot {
			if res.Success {
				succeeded++
			}
			results = append(results, res)
		}
	}

	log.Info("执行完成，共 %d 条结果，成功 %d 条", len(results), succeeded)
	return results, nil
}

func (o *Orchestrator) runTarget(ctx context.Context, log *utils.Logger, p Poc, target string, verify, exploit bool, base model.PocConfig) []model.PocResult {
	cfg := base.Clone(target)
	var results []model.PocResult

	if verify {
		res, err := p.Verify(ctx, cfg)
		results = append(results, settle(log, p, target, "verify", res, err))
	}
	if exploit {
		res, err := p.Exploit(ctx, cfg)
		results = append(results, settle(log, p, target, "exploit", res, err))
	}
	return results
}

// settle 把插件错误转换为失败结果
func settle(log *utils.Logger, p Poc, target, stage string, res model.PocResult, err error) model.PocResult {
	if err != nil {
		log.Warn("%s %s 失败: %v", target, stage, err)
		return model.PocResult{
			Success: false,
			Name:    p.Name(),
			Target:  target,
			Details: err.Error(),
		}
	}
	if res.Name == "" {
		res.Name = p.Name()
	}
	res.Target = target
	return res
}
