package plugins

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"pocsuite/internal/httpclient"
	"pocsuite/internal/model"
	"pocsuite/internal/poc"
)

var hrefRe = regexp.MustCompile(`(?i)href="([^"]+)"`)

// HTTPDirListing Web 目录遍历（目录列表开启）检测
type HTTPDirListing struct {
	info  model.VulnInfo
	paths []string
}

func NewHTTPDirListing() *HTTPDirListing {
	return &HTTPDirListing{
		info: model.VulnInfo{
			CWEID:            "CWE-548",
			Name:             "HTTP Directory Listing Enabled",
			Description:      "Web服务器开启了目录列表功能，目录下的文件可被任意浏览和下载。",
			Severity:         model.SeverityMedium,
			AffectedVersions: []string{"All"},
			References:       []string{"https://cwe.mitre.org/data/definitions/548.html"},
			Product:          "http",
		},
		paths: []string{
			"/",
			"/backup/",
			"/old/",
			"/uploads/",
			"/files/",
		},
	}
}

func (p *HTTPDirListing) Name() string         { return "http-dir-listing" }
func (p *HTTPDirListing) Description() string  { return p.info.Description }
func (p *HTTPDirListing) Info() model.VulnInfo { return p.info }

func baseURL(target string) (string, error) {
	target = strings.TrimSpace(target)
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", poc.URLError(target, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", poc.URLError(target, fmt.Errorf("不支持的地址: %s", target))
	}
	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"), nil
}

// findListing 返回第一个开启目录列表的地址及其页面内容
func (p *HTTPDirListing) findListing(ctx context.Context, cfg model.PocConfig) (string, []byte, error) {
	base, err := baseURL(cfg.Target)
	if err != nil {
		return "", nil, err
	}
	client := httpclient.New(timeoutOf(cfg), cfg.Headers)

	var lastErr error
	reached := false
	for _, path := range p.paths {
		u := base + path
		resp, err := client.Get(ctx, u)
		if err != nil {
			lastErr = err
			continue
		}
		reached = true
		if resp.StatusCode == http.StatusOK && strings.Contains(string(resp.Body), "Index of /") {
			return u, resp.Body, nil
		}
	}
	if !reached && lastErr != nil {
		return "", nil, poc.RequestError("请求目标失败", lastErr)
	}
	return "", nil, nil
}

func (p *HTTPDirListing) Verify(ctx context.Context, cfg model.PocConfig) (model.PocResult, error) {
	u, _, err := p.findListing(ctx, cfg)
	if err != nil {
		return model.PocResult{}, err
	}
	if u == "" {
		return poc.NewResult(p, cfg, false, "未发现目录列表"), nil
	}
	return poc.NewResult(p, cfg, true, "目录列表已开启: "+u), nil
}

// Exploit 提取目录列表中的文件名
func (p *HTTPDirListing) Exploit(ctx context.Context, cfg model.PocConfig) (model.PocResult, error) {
	if err := poc.RequireVerified(ctx, p, cfg); err != nil {
		return model.PocResult{}, err
	}

	u, body, err := p.findListing(ctx, cfg)
	if err != nil {
		return model.PocResult{}, err
	}
	if u == "" {
		return model.PocResult{}, poc.ExecutionError("目录列表已不可访问")
	}

	entries := listingEntries(body)
	return poc.NewResult(p, cfg, true, fmt.Sprintf("%s 共 %d 项: %s", u, len(entries), strings.Join(entries, ", "))), nil
}

func listingEntries(body []byte) []string {
	var entries []string
	for _, m := range hrefRe.FindAllSubmatch(body, -1) {
		href := string(m[1])
		// 跳过上级目录和排序链接
		if href == "../" || href == "/" || strings.HasPrefix(href, "?") {
			continue
		}
		entries = append(entries, href)
	}
	return entries
}
