package cli

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"pocsuite/internal/config"
)

// ErrHelp 用户请求帮助信息
var ErrHelp = flag.ErrHelp

// Command 解析后的子命令及其配置
type Command struct {
	Name       string
	ConfigPath string
	Verbose    bool
	Config     *config.Config

	// discover
	Suggest bool
	// search
	Keyword string
	// info
	Online bool
}

type Parser struct {
	output io.Writer
}

func NewParser() *Parser {
	return &Parser{output: os.Stderr}
}

// SetOutput 帮助与错误信息的输出位置
func (p *Parser) SetOutput(w io.Writer) {
	p.output = w
}

// headerFlag 可重复的 -header key=value
type headerFlag map[string]string

func (h headerFlag) String() string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+h[k])
	}
	return strings.Join(parts, ",")
}

func (h headerFlag) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return fmt.Errorf("请求头格式应为 key=value: %s", v)
	}
	h[k] = strings.TrimSpace(val)
	return nil
}

// Parse 解析 [全局选项] <子命令> [子命令选项]。
// 优先级：默认值 < 配置文件 < 命令行参数。
func (p *Parser) Parse(args []string) (*Command, error) {
	cmd := &Command{}

	global := flag.NewFlagSet("pocsuite", flag.ContinueOnError)
	global.SetOutput(p.output)
	global.StringVar(&cmd.ConfigPath, "config", "", "YAML配置文件")
	global.BoolVar(&cmd.Verbose, "verbose", false, "显示详细信息")
	global.Usage = p.printHelp
	if err := global.Parse(args); err != nil {
		return nil, err
	}

	rest := global.Args()
	if len(rest) == 0 {
		p.printHelp()
		return nil, errors.New("必须指定子命令")
	}
	cmd.Name = rest[0]

	cfg, err := config.Load(cmd.ConfigPath)
	if err != nil {
		return nil, err
	}
	cmd.Config = cfg

	fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
	fs.SetOutput(p.output)

	var (
		targetFile  string
		timeout     = cfg.TimeoutDuration()
		scanTimeout = cfg.ScanTimeoutDuration()
		headers     = headerFlag{}
	)
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	switch cmd.Name {
	case "discover":
		fs.StringVar(&cfg.Target, "target", cfg.Target, "目标地址 (如: 192.168.1.1,10.0.0.0/24,10.0.1.1-10.0.1.20)")
		fs.StringVar(&targetFile, "file", "", "从文件读取目标，每行一个")
		fs.StringVar(&cfg.Ports, "ports", cfg.Ports, "端口范围 (如: 1-1000,80,443，默认: 常见端口)")
		fs.IntVar(&cfg.Threads, "threads", cfg.Threads, "并发连接数")
		fs.DurationVar(&scanTimeout, "timeout", scanTimeout, "连接超时时间")
		fs.Float64Var(&cfg.RateLimit, "rate", cfg.RateLimit, "每秒最多发起的连接数 (0 不限速)")
		fs.BoolVar(&cmd.Suggest, "suggest", false, "根据服务指纹推荐POC")
		fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "公告库路径")
		p.outputFlags(fs, cfg)
	case "scan":
		fs.StringVar(&cfg.PocName, "poc", cfg.PocName, "POC名称")
		fs.StringVar(&cfg.Target, "target", cfg.Target, "目标，多个以逗号分隔")
		fs.StringVar(&targetFile, "file", "", "从文件读取目标，每行一个")
		fs.BoolVar(&cfg.Verify, "verify", cfg.Verify, "执行验证")
		fs.BoolVar(&cfg.Exploit, "exploit", cfg.Exploit, "执行利用")
		fs.DurationVar(&timeout, "timeout", timeout, "请求超时时间")
		fs.Var(headers, "header", "附加请求头 key=value，可重复")
		fs.IntVar(&cfg.Threads, "threads", cfg.Threads, "同时检测的目标数")
		p.outputFlags(fs, cfg)
	case "list":
		p.outputFlags(fs, cfg)
	case "search":
		fs.StringVar(&cmd.Keyword, "keyword", "", "搜索关键字")
		p.outputFlags(fs, cfg)
	case "info":
		fs.StringVar(&cfg.PocName, "poc", cfg.PocName, "POC名称")
		fs.BoolVar(&cmd.Online, "online", false, "从NVD查询CVSS评分")
		fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "公告库路径")
		fs.StringVar(&cfg.NVDBaseURL, "nvd", cfg.NVDBaseURL, "NVD API地址")
		p.outputFlags(fs, cfg)
	case "serve":
		fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "监听地址")
		fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "公告库路径")
		fs.IntVar(&cfg.Threads, "threads", cfg.Threads, "并发数")
	case "help", "-h", "--help":
		p.printHelp()
		return nil, ErrHelp
	default:
		p.printHelp()
		return nil, fmt.Errorf("未知的子命令: %s", cmd.Name)
	}

	if err := fs.Parse(rest[1:]); err != nil {
		return nil, err
	}

	cfg.Timeout = config.Duration(timeout)
	cfg.ScanTimeout = config.Duration(scanTimeout)
	if len(headers) > 0 {
		cfg.Headers = headers
	}

	if targetFile != "" {
		fromFile, err := ReadTargetFile(targetFile)
		if err != nil {
			return nil, err
		}
		cfg.Target = joinTargets(cfg.Target, fromFile)
	}

	if cmd.Name == "search" && cmd.Keyword == "" && fs.NArg() > 0 {
		cmd.Keyword = strings.Join(fs.Args(), " ")
	}

	if err := cmd.validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (p *Parser) outputFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.Output, "output", cfg.Output, "输出文件")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "输出格式 (text, json, csv)")
}

func (c *Command) validate() error {
	cfg := c.Config
	switch c.Name {
	case "discover":
		if cfg.Target == "" {
			return errors.New("必须指定目标地址 (-target 或 -file)")
		}
	case "scan":
		if cfg.PocName == "" {
			return errors.New("必须指定POC名称 (-poc)")
		}
		if cfg.Target == "" {
			return errors.New("必须指定目标 (-target 或 -file)")
		}
		if !cfg.Verify && !cfg.Exploit {
			return errors.New("-verify 与 -exploit 至少开启一个")
		}
	case "search":
		if c.Keyword == "" {
			return errors.New("必须指定搜索关键字 (-keyword)")
		}
	case "info":
		if cfg.PocName == "" {
			return errors.New("必须指定POC名称 (-poc)")
		}
	}
	return cfg.Validate()
}

// ReadTargetFile 读取目标文件，忽略空行和 # 开头的注释，返回逗号拼接的目标列表
func ReadTargetFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("读取目标文件失败: %w", err)
	}
	defer f.Close()

	var targets []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("读取目标文件失败: %w", err)
	}
	return strings.Join(targets, ","), nil
}

func joinTargets(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "," + b
	}
}

func (p *Parser) printHelp() {
	w := p.output
	fmt.Fprintln(w, "pocsuite - Go语言资产发现与POC检测框架")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "使用方法: pocsuite [-config file] [-verbose] <子命令> [选项]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "子命令:")
	fmt.Fprintln(w, "  discover   资产发现 (-target -file -ports -threads -timeout -rate -suggest -output -format)")
	fmt.Fprintln(w, "  scan       执行POC (-poc -target -file -verify -exploit -timeout -header -threads -output -format)")
	fmt.Fprintln(w, "  list       列出全部POC")
	fmt.Fprintln(w, "  search     搜索POC (-keyword)")
	fmt.Fprintln(w, "  info       查看POC详情 (-poc -online)")
	fmt.Fprintln(w, "  serve      启动HTTP API (-listen)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "示例:")
	fmt.Fprintln(w, "  pocsuite discover -target 192.168.1.0/24 -ports 1-1000 -suggest")
	fmt.Fprintln(w, "  pocsuite scan -poc redis-unauth -verify -target 10.0.0.5,10.0.0.6:6380")
	fmt.Fprintln(w, "  pocsuite -config pocsuite.yaml scan -exploit -format json -output result.json")
	fmt.Fprintln(w, "  pocsuite search redis")
}
