package plugins

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pocsuite/internal/model"
	"pocsuite/internal/poc"
)

const listingPage = `<html><head><title>Index of /uploads</title></head><body>
<h1>Index of /uploads</h1>
<a href="?C=N;O=D">Name</a>
<a href="../">Parent Directory</a>
<a href="db.sql">db.sql</a>
<a href="config.bak">config.bak</a>
</body></html>`

func TestDirListingVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/uploads/" {
			w.Write([]byte(listingPage))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	p := NewHTTPDirListing()
	res, err := p.Verify(context.Background(), model.PocConfig{Target: server.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("验证失败: %v", err)
	}
	if !res.Success || !strings.HasSuffix(res.Details, "/uploads/") {
		t.Errorf("期望发现 /uploads/ 目录列表, 实际得到 %+v", res)
	}

	res, err = p.Exploit(context.Background(), model.PocConfig{Target: server.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("利用失败: %v", err)
	}
	if !strings.Contains(res.Details, "共 2 项: db.sql, config.bak") {
		t.Errorf("期望列出 2 个文件, 实际得到 %q", res.Details)
	}
}

func TestDirListingNotVulnerable(t *testing.T) {
	var headerSeen atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") == "session=1" {
			headerSeen.Store(true)
		}
		w.Write([]byte("<html>welcome</html>"))
	}))
	defer server.Close()

	p := NewHTTPDirListing()
	cfg := model.PocConfig{Target: server.URL, Timeout: 2 * time.Second, Headers: map[string]string{"Cookie": "session=1"}}
	res, err := p.Verify(context.Background(), cfg)
	if err != nil {
		t.Fatalf("验证失败: %v", err)
	}
	if res.Success {
		t.Error("普通页面不应判定为目录列表")
	}
	if !headerSeen.Load() {
		t.Error("期望请求携带自定义请求头")
	}

	if _, err := p.Exploit(context.Background(), cfg); !errors.Is(err, poc.ErrExecution) {
		t.Errorf("期望 ErrExecution, 实际得到 %v", err)
	}
}

func TestDirListingBadTarget(t *testing.T) {
	_, err := NewHTTPDirListing().Verify(context.Background(), model.PocConfig{Target: "ftp://example.com"})
	if !errors.Is(err, poc.ErrInvalidURL) {
		t.Errorf("期望 ErrInvalidURL, 实际得到 %v", err)
	}
}
