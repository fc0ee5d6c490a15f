package poc

import (
	"sort"
	"strings"
	"sync"

	"pocsuite/internal/model"
)

// Registry 插件名到插件实例的并发安全映射
type Registry struct {
	mu   sync.RWMutex
	pocs map[string]Poc
}

func NewRegistry() *Registry {
	return &Registry{pocs: make(map[string]Poc)}
}

// Register 注册插件，同名插件会被替换
func (r *Registry) Register(p Poc) {
	name := p.Name()
	r.mu.Lock()
	r.pocs[name] = p
	r.mu.Unlock()
}

// Get 按名称查找插件
func (r *Registry) Get(name string) (Poc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pocs[name]
	return p, ok
}

// List 返回按名称排序的所有插件名
func (r *Registry) List() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.pocs))
	for name := range r.pocs {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Len 已注册插件数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pocs)
}

// Infos 返回插件名到漏洞信息的映射
func (r *Registry) Infos() map[string]model.VulnInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]model.VulnInfo, len(r.pocs))
	for name, p := range r.pocs {
		out[name] = p.Info()
	}
	return out
}

// Search 按关键字查找插件，匹配插件名、漏洞名、描述和CVE编号，不区分大小写
func (r *Registry) Search(keyword string) []string {
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	r.mu.RLock()
	var names []string
	for name, p := range r.pocs {
		info := p.Info()
		fields := []string{name, info.Name, p.Description(), info.CVEID, info.Product}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), keyword) {
				names = append(names, name)
				break
			}
		}
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}
