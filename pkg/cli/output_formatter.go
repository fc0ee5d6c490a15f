package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"pocsuite/internal/model"
)

const bannerWidth = 40

// PocEntry 插件列表/详情中的一项
type PocEntry struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Info        model.VulnInfo   `json:"info"`
	Advisories  []model.Advisory `json:"advisories,omitempty"`
}

type OutputFormatter struct {
	format string
	out    io.Writer
}

func NewOutputFormatter(format string) *OutputFormatter {
	return &OutputFormatter{format: strings.ToLower(format), out: os.Stdout}
}

// SetWriter 替换标准输出
func (of *OutputFormatter) SetWriter(w io.Writer) {
	of.out = w
}

func (of *OutputFormatter) emit(output, outputFile string) error {
	if outputFile != "" {
		return os.WriteFile(outputFile, []byte(output), 0644)
	}
	_, err := io.WriteString(of.out, output)
	return err
}

func toJSON(v interface{}) string {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "%v"}`, err)
	}
	return string(jsonBytes) + "\n"
}

func toCSV(header []string, rows [][]string) string {
	var builder strings.Builder
	writer := csv.NewWriter(&builder)
	writer.Write(header)
	writer.WriteAll(rows)
	return builder.String()
}

func severityIcon(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "🔥"
	case model.SeverityHigh:
		return "🔴"
	case model.SeverityMedium:
		return "🟠"
	case model.SeverityLow:
		return "🟢"
	default:
		return "⚪"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// firstLine 横幅只显示第一行，并限制长度
func firstLine(s string, width int) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > width {
		return string(r[:width]) + "..."
	}
	return string(r)
}

func sortedPorts(host model.Host) []uint16 {
	ports := make([]uint16, 0, len(host.Ports))
	for p := range host.Ports {
		ports = append(ports, p)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
	return ports
}

// PrintHosts 输出资产发现结果
func (of *OutputFormatter) PrintHosts(hosts []model.Host, outputFile string) error {
	var output string
	switch of.format {
	case "json":
		output = toJSON(hosts)
	case "csv":
		var rows [][]string
		for _, host := range hosts {
			for _, port := range sortedPorts(host) {
				svc := host.Ports[port]
				rows = append(rows, []string{host.Address.String(), strconv.Itoa(int(port)), svc.Name, svc.Version, svc.Banner})
			}
		}
		output = toCSV([]string{"地址", "端口", "服务", "版本", "横幅"}, rows)
	default:
		output = of.formatHostsText(hosts)
	}
	return of.emit(output, outputFile)
}

func (of *OutputFormatter) formatHostsText(hosts []model.Host) string {
	var builder strings.Builder

	builder.WriteString("\n📡 资产发现结果\n")
	builder.WriteString(strings.Repeat("═", 60) + "\n")

	if len(hosts) == 0 {
		builder.WriteString("❌ 未发现存活主机\n")
		return builder.String()
	}

	openCount := 0
	for _, host := range hosts {
		builder.WriteString(fmt.Sprintf("\n🖥  %s  (开放端口 %d 个)\n", host.Address, len(host.Ports)))
		if len(host.Ports) == 0 {
			continue
		}
		builder.WriteString(strings.Repeat("─", 60) + "\n")

		w := tabwriter.NewWriter(&builder, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "端口\t服务\t版本\t横幅")
		for _, port := range sortedPorts(host) {
			svc := host.Ports[port]
			fmt.Fprintf(w, "%d/tcp\t%s\t%s\t%s\n", port, svc.Name, orDash(svc.Version), orDash(firstLine(svc.Banner, bannerWidth)))
			openCount++
		}
		w.Flush()
	}

	builder.WriteString("\n" + strings.Repeat("═", 60) + "\n")
	builder.WriteString(fmt.Sprintf("✨ 存活主机 %d 个，开放端口 %d 个\n", len(hosts), openCount))
	return builder.String()
}

// PrintSuggestions 输出根据服务指纹推荐的POC
func (of *OutputFormatter) PrintSuggestions(suggestions []model.Suggestion, outputFile string) error {
	var output string
	switch of.format {
	case "json":
		output = toJSON(suggestions)
	case "csv":
		rows := make([][]string, 0, len(suggestions))
		for _, s := range suggestions {
			rows = append(rows, []string{s.Target, s.Service, s.Poc, s.CVEID, s.Reason})
		}
		output = toCSV([]string{"目标", "服务", "POC", "CVE", "原因"}, rows)
	default:
		var builder strings.Builder
		if len(suggestions) == 0 {
			builder.WriteString("\n✅ 未匹配到已知漏洞或可用POC\n")
			return of.emit(builder.String(), outputFile)
		}
		builder.WriteString(fmt.Sprintf("\n⚠️  建议检测项 %d 个:\n", len(suggestions)))
		w := tabwriter.NewWriter(&builder, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "目标\t服务\tPOC\tCVE\t原因")
		for _, s := range suggestions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Target, s.Service, orDash(s.Poc), orDash(s.CVEID), s.Reason)
		}
		w.Flush()
		output = builder.String()
	}
	return of.emit(output, outputFile)
}

// PrintResults 输出POC执行结果表（插件、目标、状态、详情）
func (of *OutputFormatter) PrintResults(results []model.PocResult, outputFile string) error {
	var output string
	switch of.format {
	case "json":
		output = toJSON(results)
	case "csv":
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			rows = append(rows, []string{r.Name, r.Target, strconv.FormatBool(r.Success), r.Details})
		}
		output = toCSV([]string{"插件", "目标", "成功", "详情"}, rows)
	default:
		var builder strings.Builder
		builder.WriteString("\n🎯 POC执行结果\n")
		builder.WriteString(strings.Repeat("═", 60) + "\n")

		succeeded := 0
		w := tabwriter.NewWriter(&builder, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "插件\t目标\t状态\t详情")
		for _, r := range results {
			status := "❌ 失败"
			if r.Success {
				status = "✅ 成功"
				succeeded++
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Target, status, orDash(r.Details))
		}
		w.Flush()

		builder.WriteString(strings.Repeat("═", 60) + "\n")
		builder.WriteString(fmt.Sprintf("共 %d 条结果，成功 %d 条\n", len(results), succeeded))
		output = builder.String()
	}
	return of.emit(output, outputFile)
}

// PrintPocs 输出插件列表
func (of *OutputFormatter) PrintPocs(entries []PocEntry, outputFile string) error {
	var output string
	switch of.format {
	case "json":
		output = toJSON(entries)
	case "csv":
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{e.Name, e.Info.Name, e.Info.Severity.String(), e.Info.CVEID, e.Info.Product, e.Description})
		}
		output = toCSV([]string{"名称", "漏洞", "严重程度", "CVE", "产品", "描述"}, rows)
	default:
		var builder strings.Builder
		if len(entries) == 0 {
			builder.WriteString("❌ 没有匹配的POC\n")
			return of.emit(builder.String(), outputFile)
		}
		w := tabwriter.NewWriter(&builder, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "名称\t漏洞\t严重程度\tCVE\t产品")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\n", e.Name, e.Info.Name, severityIcon(e.Info.Severity), e.Info.Severity, orDash(e.Info.CVEID), e.Info.Product)
		}
		w.Flush()
		builder.WriteString(fmt.Sprintf("\n共 %d 个POC\n", len(entries)))
		output = builder.String()
	}
	return of.emit(output, outputFile)
}

// PrintPocDetail 输出单个插件的详细信息
func (of *OutputFormatter) PrintPocDetail(entry PocEntry, outputFile string) error {
	if of.format == "json" {
		return of.emit(toJSON(entry), outputFile)
	}
	if of.format == "csv" {
		return of.PrintPocs([]PocEntry{entry}, outputFile)
	}

	info := entry.Info
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("\n%s %s (%s)\n", severityIcon(info.Severity), info.Name, entry.Name))
	builder.WriteString(strings.Repeat("═", 60) + "\n")
	builder.WriteString(fmt.Sprintf("严重程度: %s\n", info.Severity))
	builder.WriteString(fmt.Sprintf("CVE编号:  %s\n", orDash(info.CVEID)))
	builder.WriteString(fmt.Sprintf("CWE编号:  %s\n", orDash(info.CWEID)))
	builder.WriteString(fmt.Sprintf("目标服务: %s\n", orDash(info.Product)))
	builder.WriteString(fmt.Sprintf("影响版本: %s\n", orDash(strings.Join(info.AffectedVersions, ", "))))
	builder.WriteString(fmt.Sprintf("📝 %s\n", entry.Description))
	for _, ref := range info.References {
		builder.WriteString(fmt.Sprintf("🔗 %s\n", ref))
	}

	for _, a := range entry.Advisories {
		if a.CVSSScore == 0 {
			continue
		}
		builder.WriteString(fmt.Sprintf("\n%s %s (CVSS: %.1f %s)\n", severityIcon(a.Severity), a.CVEID, a.CVSSScore, a.Severity))
		if !a.Published.IsZero() {
			builder.WriteString(fmt.Sprintf("   发布日期: %s\n", a.Published.Format("2006-01-02")))
		}
		if a.Description != "" && a.Description != entry.Description {
			builder.WriteString(fmt.Sprintf("   📝 %s\n", firstLine(a.Description, 100)))
		}
	}
	return of.emit(builder.String(), outputFile)
}
