package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"sigs.k8s.io/yaml"

	"pocsuite/internal/advisory"
	"pocsuite/internal/scanner"
)

// Duration 配置文件中的时长，支持 "5s" 形式或表示秒数的整数
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*d = Duration(time.Duration(val * float64(time.Second)))
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("无效的时长 %q: %w", val, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("无效的时长: %s", string(data))
	}
	return nil
}

// Config 配置文件内容，命令行参数会覆盖同名配置
type Config struct {
	// POC执行
	Target  string            `json:"target"`
	PocName string            `json:"poc_name"`
	Verify  bool              `json:"verify"`
	Exploit bool              `json:"exploit"`
	Headers map[string]string `json:"headers,omitempty"`
	// Plugins 启用的插件，为空时启用全部内置插件
	Plugins []string `json:"plugins,omitempty"`

	// Timeout POC单次请求的超时
	Timeout Duration `json:"timeout"`

	// 资产发现
	Ports       string   `json:"ports"`
	Threads     int      `json:"threads"`
	ScanTimeout Duration `json:"scan_timeout"`
	RateLimit   float64  `json:"rate_limit"`

	Output string `json:"output"`
	Format string `json:"format"`

	DBPath     string `json:"db_path"`
	NVDBaseURL string `json:"nvd_base_url"`
	Listen     string `json:"listen"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Timeout:     Duration(10 * time.Second),
		Threads:     scanner.DefaultConcurrency,
		ScanTimeout: Duration(scanner.DefaultTimeout),
		Format:      "text",
		DBPath:      advisory.MemoryPath,
		NVDBaseURL:  advisory.DefaultNVDBaseURL,
		Listen:      "127.0.0.1:8080",
	}
}

// Load 在默认配置之上加载配置文件，path 为空时只返回默认配置
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	switch strings.ToLower(c.Format) {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("不支持的输出格式: %s", c.Format)
	}
	if c.Threads < 1 {
		return fmt.Errorf("并发数必须大于0: %d", c.Threads)
	}
	if c.Timeout <= 0 || c.ScanTimeout <= 0 {
		return fmt.Errorf("超时时间必须大于0: %s / %s", time.Duration(c.Timeout), time.Duration(c.ScanTimeout))
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("速率限制不能为负数: %v", c.RateLimit)
	}
	return nil
}

// TimeoutDuration POC超时时间
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout)
}

// ScanTimeoutDuration 扫描连接超时时间
func (c *Config) ScanTimeoutDuration() time.Duration {
	return time.Duration(c.ScanTimeout)
}

// Save 以YAML格式写出配置
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
