package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pocsuite/internal/model"
	"pocsuite/internal/utils"
)

// DefaultNVDBaseURL NVD CVE API 2.0
const DefaultNVDBaseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

var ErrCVENotFound = errors.New("CVE不存在")

// NVDClient 从NVD查询单个CVE的客户端
type NVDClient struct {
	baseURL    string
	logger     *utils.Logger
	httpClient *http.Client
}

// NewNVDClient baseURL 为空时使用 DefaultNVDBaseURL
func NewNVDClient(baseURL string) *NVDClient {
	if baseURL == "" {
		baseURL = DefaultNVDBaseURL
	}
	return &NVDClient{
		baseURL: baseURL,
		logger:  utils.NewLogger("nvd-client"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// NVD API响应结构
type nvdResponse struct {
	TotalResults    int                `json:"totalResults"`
	Vulnerabilities []nvdVulnerability `json:"vulnerabilities"`
}

type nvdVulnerability struct {
	CVE nvdCVE `json:"cve"`
}

type nvdCVE struct {
	ID             string          `json:"id"`
	Published      string          `json:"published"`
	Descriptions   []nvdLangString `json:"descriptions"`
	Metrics        nvdMetrics      `json:"metrics"`
	Configurations []nvdConfig     `json:"configurations"`
	References     []nvdReference  `json:"references"`
}

type nvdLangString struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type nvdCvssData struct {
	Version      string  `json:"version"`
	Vector       string  `json:"vectorString"`
	BaseScore    float64 `json:"baseScore"`
	BaseSeverity string  `json:"baseSeverity"`
}

type nvdMetric struct {
	CvssData nvdCvssData `json:"cvssData"`
	// v2 的严重程度在外层
	BaseSeverity string `json:"baseSeverity"`
}

type nvdMetrics struct {
	CvssMetricV31 []nvdMetric `json:"cvssMetricV31"`
	CvssMetricV30 []nvdMetric `json:"cvssMetricV30"`
	CvssMetricV2  []nvdMetric `json:"cvssMetricV2"`
}

type nvdConfig struct {
	Nodes []struct {
		CpeMatch []struct {
			Vulnerable            bool   `json:"vulnerable"`
			Criteria              string `json:"criteria"`
			VersionStartIncluding string `json:"versionStartIncluding"`
			VersionEndIncluding   string `json:"versionEndIncluding"`
		} `json:"cpeMatch"`
	} `json:"nodes"`
}

type nvdReference struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// FetchCVE 查询单个CVE并转换为公告
func (c *NVDClient) FetchCVE(ctx context.Context, cveID string) (model.Advisory, error) {
	cveID = strings.ToUpper(strings.TrimSpace(cveID))
	u := fmt.Sprintf("%s?cveId=%s", c.baseURL, url.QueryEscape(cveID))
	c.logger.Debug("请求URL: %s", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Advisory{}, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", "pocsuite/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Advisory{}, fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Advisory{}, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return model.Advisory{}, fmt.Errorf("%w: %s", ErrCVENotFound, cveID)
	}
	if resp.StatusCode != http.StatusOK {
		return model.Advisory{}, fmt.Errorf("API返回错误: %s", resp.Status)
	}

	var parsed nvdResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.Advisory{}, fmt.Errorf("解析JSON失败: %w", err)
	}
	if len(parsed.Vulnerabilities) == 0 {
		return model.Advisory{}, fmt.Errorf("%w: %s", ErrCVENotFound, cveID)
	}

	return convertNVD(parsed.Vulnerabilities[0].CVE), nil
}

// convertNVD 将NVD响应转换为公告
func convertNVD(cve nvdCVE) model.Advisory {
	a := model.Advisory{
		CVEID: cve.ID,
		Title: cve.ID,
	}

	for _, desc := range cve.Descriptions {
		if desc.Lang == "en" {
			a.Description = desc.Value
			break
		}
	}

	// 优先使用 CVSS v3.1，其次 v3.0、v2
	var severity string
	switch m := cve.Metrics; {
	case len(m.CvssMetricV31) > 0:
		a.CVSSScore = m.CvssMetricV31[0].CvssData.BaseScore
		severity = m.CvssMetricV31[0].CvssData.BaseSeverity
	case len(m.CvssMetricV30) > 0:
		a.CVSSScore = m.CvssMetricV30[0].CvssData.BaseScore
		severity = m.CvssMetricV30[0].CvssData.BaseSeverity
	case len(m.CvssMetricV2) > 0:
		a.CVSSScore = m.CvssMetricV2[0].CvssData.BaseScore
		severity = m.CvssMetricV2[0].BaseSeverity
	}
	if sev, err := model.ParseSeverity(severity); err == nil {
		a.Severity = sev
	}

	if published, err := time.Parse("2006-01-02T15:04:05.000", cve.Published); err == nil {
		a.Published = published
	}

	// 取第一个受影响的CPE作为产品和版本范围
found:
	for _, config := range cve.Configurations {
		for _, node := range config.Nodes {
			for _, match := range node.CpeMatch {
				if !match.Vulnerable {
					continue
				}
				parts := strings.Split(match.Criteria, ":")
				if len(parts) < 5 {
					continue
				}
				a.Product = parts[4]
				if len(parts) > 5 && parts[5] != "*" && parts[5] != "-" {
					a.Version, a.VersionEnd = parts[5], parts[5]
				}
				if match.VersionStartIncluding != "" {
					a.Version = match.VersionStartIncluding
				}
				if match.VersionEndIncluding != "" {
					a.VersionEnd = match.VersionEndIncluding
				}
				break found
			}
		}
	}

	a.References = append(a.References, nvdLink(cve.ID))
	for _, ref := range cve.References {
		name := ref.Source
		if name == "" {
			name = "Reference"
		}
		a.References = append(a.References, model.Link{Name: name, URL: ref.URL})
	}
	return a
}

// Enrich 从NVD查询CVE，补充评分后写入公告库。
// 已有同编号的插件公告时保留插件名，只更新评分与发布日期等信息。
func (d *Database) Enrich(ctx context.Context, client *NVDClient, cveID string) (model.Advisory, error) {
	fetched, err := client.FetchCVE(ctx, cveID)
	if err != nil {
		return model.Advisory{}, err
	}

	existing, err := d.ByCVE(fetched.CVEID)
	if err != nil {
		return model.Advisory{}, err
	}
	if len(existing) == 0 {
		if err := d.InsertAdvisory(fetched); err != nil {
			return model.Advisory{}, err
		}
		d.recordSync("nvd", 1)
		return fetched, nil
	}

	var merged model.Advisory
	for _, a := range existing {
		a.CVSSScore = fetched.CVSSScore
		a.Severity = fetched.Severity
		a.Published = fetched.Published
		if a.Description == "" {
			a.Description = fetched.Description
		}
		a.References = mergeLinks(a.References, fetched.References)
		if err := d.InsertAdvisory(a); err != nil {
			return model.Advisory{}, err
		}
		merged = a
	}
	d.recordSync("nvd", len(existing))
	return merged, nil
}

func mergeLinks(a, b []model.Link) []model.Link {
	seen := make(map[string]bool, len(a))
	for _, l := range a {
		seen[l.URL] = true
	}
	for _, l := range b {
		if !seen[l.URL] {
			seen[l.URL] = true
			a = append(a, l)
		}
	}
	return a
}
