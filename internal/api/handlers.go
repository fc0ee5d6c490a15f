package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pocsuite/internal/model"
	"pocsuite/internal/poc"
	"pocsuite/internal/scanner"
)

const defaultPocTimeout = 10 * time.Second

// PocSummary 插件列表中的一项
type PocSummary struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Info        model.VulnInfo `json:"info"`
}

type PocDetail struct {
	PocSummary
	Advisories []model.Advisory `json:"advisories,omitempty"`
}

type DiscoverRequest struct {
	Target      string  `json:"target" binding:"required"`
	Ports       string  `json:"ports"`
	Concurrency int     `json:"concurrency"`
	TimeoutMs   int     `json:"timeout_ms"`
	RateLimit   float64 `json:"rate_limit"`
	Suggest     bool    `json:"suggest"`
}

type DiscoverResponse struct {
	RunID       string             `json:"run_id"`
	Hosts       []model.Host       `json:"hosts"`
	Suggestions []model.Suggestion `json:"suggestions,omitempty"`
}

type RunRequest struct {
	Poc       string            `json:"poc" binding:"required"`
	Target    string            `json:"target" binding:"required"`
	Verify    bool              `json:"verify"`
	Exploit   bool              `json:"exploit"`
	TimeoutMs int               `json:"timeout_ms"`
	Headers   map[string]string `json:"headers"`
}

type RunResponse struct {
	RunID   string            `json:"run_id"`
	Results []model.PocResult `json:"results"`
}

func (s *Server) summaries(names []string) []PocSummary {
	out := make([]PocSummary, 0, len(names))
	for _, name := range names {
		p, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		out = append(out, PocSummary{Name: name, Description: p.Description(), Info: p.Info()})
	}
	return out
}

func (s *Server) ListPocs(c *gin.Context) {
	c.JSON(http.StatusOK, s.summaries(s.registry.List()))
}

func (s *Server) SearchPocs(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少查询参数 q"})
		return
	}
	c.JSON(http.StatusOK, s.summaries(s.registry.Search(q)))
}

func (s *Server) GetPoc(c *gin.Context) {
	name := c.Param("name")
	p, ok := s.registry.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "POC不存在: " + name})
		return
	}

	detail := PocDetail{PocSummary: PocSummary{Name: name, Description: p.Description(), Info: p.Info()}}
	if s.db != nil {
		advisories, err := s.db.ByPoc(name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "查询公告失败: " + err.Error()})
			return
		}
		detail.Advisories = advisories
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) Discover(c *gin.Context) {
	var req DiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := s.discoverOptions(req)
	runID := uuid.NewString()
	log := s.logger.With("run", runID)
	log.Info("开始资产发现: target=%s ports=%q", req.Target, req.Ports)

	hosts, err := scanner.NewHostScanner(opts).Scan(c.Request.Context(), req.Target, req.Ports)
	if err != nil {
		var parseErr *scanner.ParseError
		if errors.As(err, &parseErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error("资产发现失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if hosts == nil {
		hosts = []model.Host{}
	}

	resp := DiscoverResponse{RunID: runID, Hosts: hosts}
	if req.Suggest && s.db != nil {
		suggestions, err := s.db.Suggest(hosts)
		if err != nil {
			log.Warn("生成POC建议失败: %v", err)
		}
		resp.Suggestions = suggestions
	}

	log.Info("资产发现完成，存活主机 %d 个", len(hosts))
	c.JSON(http.StatusOK, resp)
}

// discoverOptions 合并请求参数，请求中的并发数不能超过服务端配置
func (s *Server) discoverOptions(req DiscoverRequest) scanner.Options {
	opts := s.scanOpts
	limit := opts.Concurrency
	if limit <= 0 {
		limit = scanner.DefaultConcurrency
	}
	opts.Concurrency = limit
	if req.Concurrency > 0 && req.Concurrency < limit {
		opts.Concurrency = req.Concurrency
	}
	if req.TimeoutMs > 0 {
		opts.Timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	if req.RateLimit > 0 {
		opts.RateLimit = req.RateLimit
	}
	return opts
}

func (s *Server) RunPoc(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// 两者都未指定时只做验证
	if !req.Verify && !req.Exploit {
		req.Verify = true
	}

	timeout := defaultPocTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	base := model.PocConfig{
		Timeout: timeout,
		Headers: req.Headers,
		Verify:  req.Verify,
		Exploit: req.Exploit,
	}

	runID := uuid.NewString()
	s.logger.With("run", runID).Info("执行POC %s: %s", req.Poc, req.Target)

	ctx := poc.WithRunID(c.Request.Context(), runID)
	results, err := s.orchestrator.Run(ctx, req.Poc, req.Target, req.Verify, req.Exploit, base)
	if err != nil {
		if errors.Is(err, poc.ErrPocNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if results == nil {
		results = []model.PocResult{}
	}
	c.JSON(http.StatusOK, RunResponse{RunID: runID, Results: results})
}
