package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pocsuite/internal/advisory"
	"pocsuite/internal/api"
	"pocsuite/internal/config"
	"pocsuite/internal/model"
	"pocsuite/internal/plugins"
	"pocsuite/internal/poc"
	"pocsuite/internal/scanner"
	"pocsuite/internal/utils"
	"pocsuite/pkg/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 解析命令行参数
	parser := cli.NewParser()
	cmd, err := parser.Parse(os.Args[1:])
	if errors.Is(err, cli.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n\n", err)
		fmt.Fprintf(os.Stderr, "使用 %s help 查看完整帮助信息\n", filepath.Base(os.Args[0]))
		return 1
	}

	utils.SetVerbose(cmd.Verbose)
	logger := utils.NewLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reg := newRegistry(cmd.Config.Plugins, logger)
	logger.Debug("已加载 %d 个POC插件", reg.Len())

	start := time.Now()
	switch cmd.Name {
	case "discover":
		err = runDiscover(ctx, cmd, reg)
	case "scan":
		err = runScan(ctx, cmd, reg)
	case "list":
		err = runList(cmd, reg, reg.List())
	case "search":
		err = runList(cmd, reg, reg.Search(cmd.Keyword))
	case "info":
		err = runInfo(ctx, cmd, reg)
	case "serve":
		err = runServe(ctx, cmd, reg)
	}
	if err != nil {
		logger.Error("%s 执行失败: %v", cmd.Name, err)
		return 1
	}

	logger.Debug("%s 完成，总耗时: %v", cmd.Name, time.Since(start))
	return 0
}

// newRegistry 注册内置插件，enabled 非空时只保留其中列出的插件
func newRegistry(enabled []string, logger *utils.Logger) *poc.Registry {
	reg := poc.NewRegistry()
	if len(enabled) == 0 {
		plugins.RegisterAll(reg)
		return reg
	}

	want := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		want[name] = true
	}
	for _, p := range plugins.All() {
		if want[p.Name()] {
			reg.Register(p)
			delete(want, p.Name())
		}
	}
	for name := range want {
		logger.Warn("配置中的插件不存在: %s", name)
	}
	return reg
}

// openAdvisories 打开公告库并写入插件与内置CVE信息
func openAdvisories(cfg *config.Config, reg *poc.Registry) (*advisory.Database, error) {
	db, err := advisory.NewDatabase(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.SyncRegistry(reg); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.SeedKnown(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func scanOptions(cfg *config.Config) scanner.Options {
	return scanner.Options{
		Concurrency: cfg.Threads,
		Timeout:     cfg.ScanTimeoutDuration(),
		RateLimit:   cfg.RateLimit,
	}
}

func runDiscover(ctx context.Context, cmd *cli.Command, reg *poc.Registry) error {
	cfg := cmd.Config
	logger := utils.NewLogger("discover")
	logger.Info("开始资产发现: %s", cfg.Target)

	hosts, err := scanner.NewHostScanner(scanOptions(cfg)).Scan(ctx, cfg.Target, cfg.Ports)
	if err != nil {
		return err
	}

	formatter := cli.NewOutputFormatter(cfg.Format)
	if err := formatter.PrintHosts(hosts, cfg.Output); err != nil {
		return fmt.Errorf("输出结果失败: %w", err)
	}

	if !cmd.Suggest {
		return nil
	}

	db, err := openAdvisories(cfg, reg)
	if err != nil {
		return err
	}
	defer db.Close()

	suggestions, err := db.Suggest(hosts)
	if err != nil {
		return err
	}
	return formatter.PrintSuggestions(suggestions, suggestionsPath(cfg.Output))
}

// suggestionsPath 建议写入与结果文件相邻的 *.suggestions.* 文件
func suggestionsPath(output string) string {
	if output == "" {
		return ""
	}
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + ".suggestions" + ext
}

func runScan(ctx context.Context, cmd *cli.Command, reg *poc.Registry) error {
	cfg := cmd.Config

	base := model.PocConfig{
		Timeout: cfg.TimeoutDuration(),
		Headers: cfg.Headers,
		Verify:  cfg.Verify,
		Exploit: cfg.Exploit,
	}
	orchestrator := poc.NewOrchestrator(reg, cfg.Threads)
	results, err := orchestrator.Run(ctx, cfg.PocName, cfg.Target, cfg.Verify, cfg.Exploit, base)
	if err != nil {
		if errors.Is(err, poc.ErrPocNotFound) {
			if similar := reg.Search(cfg.PocName); len(similar) > 0 {
				return fmt.Errorf("%w，相近的POC: %s", err, strings.Join(similar, ", "))
			}
		}
		return err
	}

	return cli.NewOutputFormatter(cfg.Format).PrintResults(results, cfg.Output)
}

func pocEntry(p poc.Poc) cli.PocEntry {
	return cli.PocEntry{Name: p.Name(), Description: p.Description(), Info: p.Info()}
}

func runList(cmd *cli.Command, reg *poc.Registry, names []string) error {
	entries := make([]cli.PocEntry, 0, len(names))
	for _, name := range names {
		if p, ok := reg.Get(name); ok {
			entries = append(entries, pocEntry(p))
		}
	}
	return cli.NewOutputFormatter(cmd.Config.Format).PrintPocs(entries, cmd.Config.Output)
}

func runInfo(ctx context.Context, cmd *cli.Command, reg *poc.Registry) error {
	cfg := cmd.Config
	p, ok := reg.Get(cfg.PocName)
	if !ok {
		return &poc.Error{Kind: poc.ErrPocNotFound, Msg: cfg.PocName}
	}

	db, err := openAdvisories(cfg, reg)
	if err != nil {
		return err
	}
	defer db.Close()

	logger := utils.NewLogger("info")
	if cve := p.Info().CVEID; cmd.Online && cve != "" {
		logger.Info("正在从NVD查询 %s ...", cve)
		if _, err := db.Enrich(ctx, advisory.NewNVDClient(cfg.NVDBaseURL), cve); err != nil {
			logger.Warn("查询NVD失败: %v", err)
		}
	} else if cmd.Online {
		logger.Warn("%s 没有关联的CVE编号", cfg.PocName)
	}

	entry := pocEntry(p)
	entry.Advisories, err = db.ByPoc(cfg.PocName)
	if err != nil {
		return err
	}
	return cli.NewOutputFormatter(cfg.Format).PrintPocDetail(entry, cfg.Output)
}

func runServe(ctx context.Context, cmd *cli.Command, reg *poc.Registry) error {
	cfg := cmd.Config
	if !cmd.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	utils.SetJSON()

	db, err := openAdvisories(cfg, reg)
	if err != nil {
		return err
	}
	defer db.Close()

	server := api.NewServer(reg, poc.NewOrchestrator(reg, cfg.Threads), db, scanOptions(cfg))
	return server.Serve(ctx, cfg.Listen)
}
