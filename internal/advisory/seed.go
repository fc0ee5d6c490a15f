package advisory

import (
	"time"

	"pocsuite/internal/model"
)

// knownAdvisories 常见服务的高危CVE，没有对应插件，仅用于发现阶段的提示
var knownAdvisories = []model.Advisory{
	{
		CVEID:       "CVE-2024-6387",
		Title:       "OpenSSH regreSSHion 远程代码执行",
		Description: "OpenSSH sshd 信号处理竞态条件，可导致未认证的远程代码执行",
		Severity:    model.SeverityHigh,
		CVSSScore:   8.1,
		Product:     "ssh",
		Version:     "8.5",
		VersionEnd:  "9.7",
		Published:   time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	},
	{
		CVEID:       "CVE-2011-2523",
		Title:       "vsftpd 2.3.4 后门",
		Description: "vsftpd 2.3.4 源码包被植入后门，用户名包含 :) 时在 6200 端口打开shell",
		Severity:    model.SeverityCritical,
		CVSSScore:   9.8,
		Product:     "ftp",
		Version:     "2.3.4",
		VersionEnd:  "2.3.4",
		Published:   time.Date(2019, 11, 27, 0, 0, 0, 0, time.UTC),
	},
	{
		CVEID:       "CVE-2022-0543",
		Title:       "Redis Lua 沙箱逃逸",
		Description: "Debian系发行版打包的Redis中Lua沙箱可被逃逸，导致远程代码执行",
		Severity:    model.SeverityCritical,
		CVSSScore:   10.0,
		Product:     "redis",
		Version:     "5.0.0",
		VersionEnd:  "6.2.6",
		Published:   time.Date(2022, 2, 18, 0, 0, 0, 0, time.UTC),
	},
	{
		CVEID:       "CVE-2021-23017",
		Title:       "Nginx DNS解析漏洞",
		Description: "Nginx resolver 差一错误，可导致拒绝服务或代码执行",
		Severity:    model.SeverityHigh,
		CVSSScore:   7.7,
		Product:     "http",
		Version:     "0.6.18",
		VersionEnd:  "1.20.0",
		Published:   time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
	},
}

// SeedKnown 写入内置的常见服务CVE
func (d *Database) SeedKnown() error {
	d.logger.Debug("初始化内置CVE数据...")

	successCount := 0
	for _, a := range knownAdvisories {
		a.References = []model.Link{nvdLink(a.CVEID)}
		if err := d.InsertAdvisory(a); err != nil {
			d.logger.Error("插入CVE失败 %s: %v", a.CVEID, err)
			return err
		}
		successCount++
	}

	d.recordSync("builtin", successCount)
	d.logger.Debug("内置CVE数据初始化完成，成功插入 %d 个CVE记录", successCount)
	return nil
}
