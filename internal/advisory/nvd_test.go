package advisory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pocsuite/internal/model"
)

const nvdFixture = `{
  "resultsPerPage": 1,
  "startIndex": 0,
  "totalResults": 1,
  "vulnerabilities": [{
    "cve": {
      "id": "CVE-1999-0497",
      "published": "1999-12-01T05:00:00.000",
      "descriptions": [
        {"lang": "es", "value": "FTP anónimo"},
        {"lang": "en", "value": "Anonymous FTP is enabled"}
      ],
      "metrics": {
        "cvssMetricV2": [{
          "cvssData": {"version": "2.0", "vectorString": "AV:N/AC:L/Au:N/C:N/I:N/A:N", "baseScore": 5.0},
          "baseSeverity": "MEDIUM"
        }]
      },
      "configurations": [{
        "nodes": [{
          "cpeMatch": [
            {"vulnerable": false, "criteria": "cpe:2.3:o:linux:linux_kernel:*:*:*:*:*:*:*:*"},
            {"vulnerable": true, "criteria": "cpe:2.3:a:vsftpd_project:vsftpd:*:*:*:*:*:*:*:*",
             "versionStartIncluding": "1.0.0", "versionEndIncluding": "3.0.5"}
          ]
        }]
      }],
      "references": [{"url": "https://example.com/ftp", "source": "cve@mitre.org"}]
    }
  }]
}`

func newNVDServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("期望GET请求, 实际得到 %s", r.Method)
		}
		switch r.URL.Query().Get("cveId") {
		case "CVE-1999-0497":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(nvdFixture))
		case "CVE-2000-0000":
			w.Write([]byte(`{"totalResults": 0, "vulnerabilities": []}`))
		case "CVE-2000-0500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewNVDClient(t *testing.T) {
	client := NewNVDClient("")
	if client.baseURL != DefaultNVDBaseURL {
		t.Errorf("期望baseURL为 %s, 实际得到 %s", DefaultNVDBaseURL, client.baseURL)
	}
	if client.logger == nil {
		t.Error("logger 不应为 nil")
	}
	if client.httpClient == nil {
		t.Error("httpClient 不应为 nil")
	}
}

func TestFetchCVE(t *testing.T) {
	server := newNVDServer(t)
	client := NewNVDClient(server.URL)

	a, err := client.FetchCVE(context.Background(), " cve-1999-0497 ")
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if a.CVEID != "CVE-1999-0497" {
		t.Errorf("期望CVE ID为 CVE-1999-0497, 实际得到 %s", a.CVEID)
	}
	if a.Description != "Anonymous FTP is enabled" {
		t.Errorf("期望英文描述, 实际得到 %s", a.Description)
	}
	if a.CVSSScore != 5.0 || a.Severity != model.SeverityMedium {
		t.Errorf("期望 5.0/Medium, 实际得到 %.1f/%s", a.CVSSScore, a.Severity)
	}
	if a.Product != "vsftpd" || a.Version != "1.0.0" || a.VersionEnd != "3.0.5" {
		t.Errorf("受影响产品不正确: %s %s-%s", a.Product, a.Version, a.VersionEnd)
	}
	if a.Published.Year() != 1999 {
		t.Errorf("发布日期不匹配: %v", a.Published)
	}
	if len(a.References) != 2 || a.References[1].URL != "https://example.com/ftp" {
		t.Errorf("参考链接不正确: %+v", a.References)
	}
}

func TestFetchCVEErrors(t *testing.T) {
	server := newNVDServer(t)
	client := NewNVDClient(server.URL)

	for _, id := range []string{"CVE-2000-0000", "CVE-2000-0404"} {
		if _, err := client.FetchCVE(context.Background(), id); !errors.Is(err, ErrCVENotFound) {
			t.Errorf("%s: 期望 ErrCVENotFound, 实际得到 %v", id, err)
		}
	}

	_, err := client.FetchCVE(context.Background(), "CVE-2000-0500")
	if err == nil || errors.Is(err, ErrCVENotFound) {
		t.Errorf("期望API错误, 实际得到 %v", err)
	}
}

func TestEnrichUpdatesPluginAdvisory(t *testing.T) {
	server := newNVDServer(t)
	client := NewNVDClient(server.URL)
	db := newTestDatabase(t)

	err := db.InsertAdvisory(model.Advisory{
		CVEID:    "CVE-1999-0497",
		PocName:  "ftp-anonymous",
		Title:    "FTP Anonymous Login",
		Severity: model.SeverityLow,
		Product:  "ftp",
	})
	if err != nil {
		t.Fatalf("插入失败: %v", err)
	}

	merged, err := db.Enrich(context.Background(), client, "CVE-1999-0497")
	if err != nil {
		t.Fatalf("补充信息失败: %v", err)
	}
	if merged.PocName != "ftp-anonymous" || merged.Product != "ftp" {
		t.Errorf("应保留插件名与产品, 实际得到 %+v", merged)
	}

	stored, err := db.ByPoc("ftp-anonymous")
	if err != nil || len(stored) != 1 {
		t.Fatalf("查询失败: %+v (%v)", stored, err)
	}
	if stored[0].CVSSScore != 5.0 || stored[0].Severity != model.SeverityMedium {
		t.Errorf("评分未更新: %+v", stored[0])
	}

	count, _ := db.Count()
	if count != 1 {
		t.Errorf("不应新增公告, 实际共 %d 条", count)
	}
}
