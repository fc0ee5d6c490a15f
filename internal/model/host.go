package model

import "net/netip"

// Host 一次扫描中发现的存活主机
type Host struct {
	Address  netip.Addr             `json:"address"`
	Hostname string                 `json:"hostname,omitempty"` // 不做反向解析，始终为空
	IsAlive  bool                   `json:"is_alive"`
	Ports    map[uint16]ServiceInfo `json:"ports"`
}

// ServiceInfo 开放端口上识别出的服务
type ServiceInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Banner  string `json:"banner,omitempty"`
}

// Suggestion 根据服务指纹推荐的POC
type Suggestion struct {
	Address string `json:"address"`
	Port    uint16 `json:"port"`
	// Target 可直接作为 scan -target 的参数
	Target  string `json:"target"`
	Service string `json:"service"`
	Poc     string `json:"poc,omitempty"`
	CVEID   string `json:"cve_id,omitempty"`
	Reason  string `json:"reason"`
}
