package model

import (
	"fmt"
	"strings"
	"time"
)

// Severity 漏洞严重程度
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityInfo:     "Info",
	SeverityLow:      "Low",
	SeverityMedium:   "Medium",
	SeverityHigh:     "High",
	SeverityCritical: "Critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// ParseSeverity 解析严重程度名称（不区分大小写）
func ParseSeverity(s string) (Severity, error) {
	for sev, name := range severityNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return sev, nil
		}
	}
	return SeverityInfo, fmt.Errorf("未知的严重程度: %s", s)
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	sev, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// VulnInfo POC插件的静态漏洞描述信息
type VulnInfo struct {
	CVEID            string   `json:"cve_id,omitempty"`
	CWEID            string   `json:"cwe_id,omitempty"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Severity         Severity `json:"severity"`
	AffectedVersions []string `json:"affected_versions"`
	References       []string `json:"references"`
	// Product 插件针对的服务名，与 ServiceInfo.Name 对应
	Product string `json:"product"`
}

// PocConfig 单个目标的POC执行配置
type PocConfig struct {
	Target  string            `json:"target"`
	Timeout time.Duration     `json:"timeout"`
	Headers map[string]string `json:"headers,omitempty"`
	Verify  bool              `json:"verify"`
	Exploit bool              `json:"exploit"`
}

// Clone 复制配置并替换目标，请求头单独拷贝，避免多个目标共享同一个map
func (c PocConfig) Clone(target string) PocConfig {
	out := c
	out.Target = target
	if c.Headers != nil {
		out.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			out.Headers[k] = v
		}
	}
	return out
}

// PocResult 一次 verify 或 exploit 调用的结果
type PocResult struct {
	Success bool   `json:"success"`
	Name    string `json:"name"`
	Target  string `json:"target"`
	Details string `json:"details,omitempty"`
}
