package advisory

import (
	"net/netip"
	"path/filepath"
	"strings"
	"testing"

	"pocsuite/internal/model"
	"pocsuite/internal/plugins"
	"pocsuite/internal/poc"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase("")
	if err != nil {
		t.Fatalf("打开数据库失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func hasAdvisory(list []model.Advisory, pocName, cveID string) bool {
	for _, a := range list {
		if a.PocName == pocName && a.CVEID == cveID {
			return true
		}
	}
	return false
}

func TestSyncRegistryAndLookup(t *testing.T) {
	db := newTestDatabase(t)
	reg := poc.NewRegistry()
	plugins.RegisterAll(reg)

	n, err := db.SyncRegistry(reg)
	if err != nil {
		t.Fatalf("同步失败: %v", err)
	}
	if n != reg.Len() {
		t.Errorf("期望同步 %d 条, 实际得到 %d", reg.Len(), n)
	}

	// 重复同步不应产生重复记录
	if _, err := db.SyncRegistry(reg); err != nil {
		t.Fatalf("同步失败: %v", err)
	}
	count, err := db.Count()
	if err != nil {
		t.Fatalf("统计失败: %v", err)
	}
	if count != reg.Len() {
		t.Errorf("期望 %d 条公告, 实际得到 %d", reg.Len(), count)
	}

	found, err := db.Lookup(model.ServiceInfo{Name: "redis", Version: "6.2.6"})
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(found) != 1 || found[0].PocName != "redis-unauth" {
		t.Errorf("期望匹配 redis-unauth, 实际得到 %+v", found)
	}
	if found[0].Severity != model.SeverityHigh {
		t.Errorf("期望严重程度 High, 实际得到 %s", found[0].Severity)
	}

	ftp, err := db.ByPoc("ftp-anonymous")
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(ftp) != 1 || ftp[0].CVEID != "CVE-1999-0497" {
		t.Fatalf("期望 CVE-1999-0497, 实际得到 %+v", ftp)
	}
	if len(ftp[0].References) != 2 || ftp[0].References[1].Name != "NVD" {
		t.Errorf("参考链接不正确: %+v", ftp[0].References)
	}
}

func TestLookupVersionRange(t *testing.T) {
	db := newTestDatabase(t)
	if err := db.SeedKnown(); err != nil {
		t.Fatalf("初始化内置数据失败: %v", err)
	}

	tests := []struct {
		service model.ServiceInfo
		want    bool
	}{
		{model.ServiceInfo{Name: "ssh", Version: "OpenSSH_9.1"}, true},
		{model.ServiceInfo{Name: "ssh", Version: "9.7"}, true},
		{model.ServiceInfo{Name: "ssh", Version: "7.4"}, false},
		{model.ServiceInfo{Name: "ssh", Version: "9.8p1"}, false},
		// 版本未知时不能排除
		{model.ServiceInfo{Name: "ssh"}, true},
		{model.ServiceInfo{Name: "SSH", Version: "8.5"}, true},
		{model.ServiceInfo{Name: "ftp", Version: "9.1"}, false},
	}

	for _, tt := range tests {
		found, err := db.Lookup(tt.service)
		if err != nil {
			t.Fatalf("查询失败: %v", err)
		}
		got := hasAdvisory(found, "", "CVE-2024-6387")
		if got != tt.want {
			t.Errorf("%+v: 期望匹配=%v, 实际得到 %v", tt.service, tt.want, got)
		}
	}
}

func TestSuggest(t *testing.T) {
	db := newTestDatabase(t)
	reg := poc.NewRegistry()
	plugins.RegisterAll(reg)
	if _, err := db.SyncRegistry(reg); err != nil {
		t.Fatalf("同步失败: %v", err)
	}

	hosts := []model.Host{
		{
			Address: netip.MustParseAddr("192.0.2.10"),
			IsAlive: true,
			Ports: map[uint16]model.ServiceInfo{
				6379: {Name: "redis"},
				21:   {Name: "ftp", Banner: "220 (vsFTPd 3.0.3)"},
				9999: {Name: "unknown_9999"},
			},
		},
	}

	suggestions, err := db.Suggest(hosts)
	if err != nil {
		t.Fatalf("生成建议失败: %v", err)
	}
	if len(suggestions) != 2 {
		t.Fatalf("期望 2 条建议, 实际得到 %+v", suggestions)
	}
	// 按端口升序
	if suggestions[0].Poc != "ftp-anonymous" || suggestions[0].Target != "192.0.2.10:21" {
		t.Errorf("第一条建议不正确: %+v", suggestions[0])
	}
	if suggestions[1].Poc != "redis-unauth" || suggestions[1].Port != 6379 {
		t.Errorf("第二条建议不正确: %+v", suggestions[1])
	}
}

func TestHistoryAndFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "advisories.db")
	db, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("打开数据库失败: %v", err)
	}
	if err := db.SeedKnown(); err != nil {
		t.Fatalf("初始化内置数据失败: %v", err)
	}
	db.Close()

	// 重新打开后数据仍在
	db, err = NewDatabase(path)
	if err != nil {
		t.Fatalf("重新打开数据库失败: %v", err)
	}
	defer db.Close()

	count, err := db.Count()
	if err != nil || count != len(knownAdvisories) {
		t.Errorf("期望 %d 条公告, 实际得到 %d (%v)", len(knownAdvisories), count, err)
	}

	history, err := db.History()
	if err != nil {
		t.Fatalf("查询历史失败: %v", err)
	}
	if len(history) != 1 || history[0].Source != "builtin" || history[0].Records != len(knownAdvisories) {
		t.Errorf("同步历史不正确: %+v", history)
	}

	found, err := db.ByCVE("cve-2011-2523")
	if err != nil || len(found) != 1 {
		t.Fatalf("期望找到 CVE-2011-2523, 实际得到 %+v (%v)", found, err)
	}
	if found[0].Published.Year() != 2019 {
		t.Errorf("发布日期不匹配: %v", found[0].Published)
	}
}

func TestFromVulnInfo(t *testing.T) {
	a := FromVulnInfo("demo", model.VulnInfo{
		Name:             "Demo",
		Severity:         model.SeverityLow,
		AffectedVersions: []string{"1.0.0", "1.1.0", "1.2.0"},
		References:       []string{"https://example.com/advisory"},
		Product:          "http",
	})

	if a.Version != "1.0.0" || a.VersionEnd != "1.2.0" {
		t.Errorf("期望版本范围 1.0.0 - 1.2.0, 实际得到 %s - %s", a.Version, a.VersionEnd)
	}
	if len(a.References) != 1 {
		t.Errorf("没有CVE编号时不应添加NVD链接: %+v", a.References)
	}

	all := FromVulnInfo("demo", model.VulnInfo{AffectedVersions: []string{"All"}})
	if all.Version != "" || all.VersionEnd != "" {
		t.Errorf("All 表示不限版本, 实际得到 %s - %s", all.Version, all.VersionEnd)
	}
}

func TestByPocRejectsCorruptReferences(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.db.Exec(`
		INSERT INTO advisories
		(cve_id, poc_name, title, description, severity, cvss_score, product, version, version_end, refs)
		VALUES ('CVE-2020-0001', 'broken-refs', '', '', 'High', 7.5, 'redis', '', '', 'not-json')`)
	if err != nil {
		t.Fatalf("写入测试数据失败: %v", err)
	}

	if _, err := db.ByPoc("broken-refs"); err == nil || !strings.Contains(err.Error(), "参考链接") {
		t.Errorf("期望参考链接解析错误, 实际得到 %v", err)
	}
}
