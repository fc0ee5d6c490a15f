package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pocsuite/internal/model"
)

func testHosts() []model.Host {
	return []model.Host{
		{
			Address: netip.MustParseAddr("192.0.2.1"),
			IsAlive: true,
			Ports: map[uint16]model.ServiceInfo{
				80: {Name: "http", Version: "nginx/1.18.0", Banner: "HTTP/1.1 200 OK\r\nServer: nginx/1.18.0"},
				22: {Name: "ssh", Banner: "SSH-2.0-OpenSSH_8.9p1"},
			},
		},
	}
}

func newBufferedFormatter(format string) (*OutputFormatter, *bytes.Buffer) {
	var buf bytes.Buffer
	of := NewOutputFormatter(format)
	of.SetWriter(&buf)
	return of, &buf
}

func TestPrintHostsText(t *testing.T) {
	of, buf := newBufferedFormatter("text")
	if err := of.PrintHosts(testHosts(), ""); err != nil {
		t.Fatalf("输出失败: %v", err)
	}
	out := buf.String()
	// 端口按升序输出，横幅只保留第一行
	if strings.Index(out, "22/tcp") > strings.Index(out, "80/tcp") {
		t.Error("端口应按升序输出")
	}
	if strings.Contains(out, "Server: nginx") {
		t.Error("横幅应只显示第一行")
	}
	if !strings.Contains(out, "存活主机 1 个，开放端口 2 个") {
		t.Errorf("统计信息不正确: %s", out)
	}
}

func TestPrintHostsJSONAndCSV(t *testing.T) {
	of, buf := newBufferedFormatter("json")
	of.PrintHosts(testHosts(), "")
	var decoded []model.Host
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON无效: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Ports[22].Name != "ssh" {
		t.Errorf("JSON内容不正确: %+v", decoded)
	}

	of, buf = newBufferedFormatter("csv")
	of.PrintHosts(testHosts(), "")
	records, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatalf("CSV无效: %v", err)
	}
	if len(records) != 3 || records[1][1] != "22" || records[2][2] != "http" || !strings.HasPrefix(records[2][4], "HTTP/1.1 200 OK") {
		t.Errorf("CSV内容不正确: %q", records)
	}
}

func TestPrintResults(t *testing.T) {
	results := []model.PocResult{
		{Success: true, Name: "redis-unauth", Target: "10.0.0.1", Details: "存在漏洞"},
		{Success: false, Name: "redis-unauth", Target: "10.0.0.2"},
	}

	of, buf := newBufferedFormatter("text")
	of.PrintResults(results, "")
	out := buf.String()
	if !strings.Contains(out, "✅ 成功") || !strings.Contains(out, "❌ 失败") {
		t.Errorf("状态列不正确: %s", out)
	}
	if !strings.Contains(out, "共 2 条结果，成功 1 条") {
		t.Errorf("统计信息不正确: %s", out)
	}

	path := filepath.Join(t.TempDir(), "results.csv")
	if err := NewOutputFormatter("CSV").PrintResults(results, path); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取文件失败: %v", err)
	}
	if !strings.Contains(string(data), "redis-unauth,10.0.0.2,false,") {
		t.Errorf("CSV内容不正确: %s", data)
	}
}

func TestPrintPocsAndDetail(t *testing.T) {
	entry := PocEntry{
		Name:        "ftp-anonymous",
		Description: "FTP匿名登录",
		Info: model.VulnInfo{
			Name:     "FTP Anonymous Login",
			CVEID:    "CVE-1999-0497",
			Severity: model.SeverityMedium,
			Product:  "ftp",
		},
		Advisories: []model.Advisory{{CVEID: "CVE-1999-0497", CVSSScore: 5.0, Severity: model.SeverityMedium}},
	}

	of, buf := newBufferedFormatter("text")
	of.PrintPocs([]PocEntry{entry}, "")
	if !strings.Contains(buf.String(), "ftp-anonymous") || !strings.Contains(buf.String(), "共 1 个POC") {
		t.Errorf("列表输出不正确: %s", buf.String())
	}

	of, buf = newBufferedFormatter("text")
	of.PrintPocDetail(entry, "")
	if !strings.Contains(buf.String(), "CVSS: 5.0") {
		t.Errorf("详情应包含CVSS评分: %s", buf.String())
	}

	of, buf = newBufferedFormatter("text")
	of.PrintPocs(nil, "")
	if !strings.Contains(buf.String(), "没有匹配的POC") {
		t.Errorf("空列表提示不正确: %s", buf.String())
	}
}

func TestPrintSuggestions(t *testing.T) {
	suggestions := []model.Suggestion{
		{Address: "192.0.2.1", Port: 6379, Target: "192.0.2.1:6379", Service: "redis", Poc: "redis-unauth", Reason: "[High] Redis"},
	}
	of, buf := newBufferedFormatter("text")
	of.PrintSuggestions(suggestions, "")
	if !strings.Contains(buf.String(), "192.0.2.1:6379") || !strings.Contains(buf.String(), "redis-unauth") {
		t.Errorf("建议输出不正确: %s", buf.String())
	}
}
