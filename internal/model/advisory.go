package model

import "time"

// Advisory 漏洞公告，来源于已注册插件的 VulnInfo 或 NVD
type Advisory struct {
	CVEID       string    `json:"cve_id" db:"cve_id"`
	PocName     string    `json:"poc_name" db:"poc_name"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Severity    Severity  `json:"severity" db:"severity"`
	CVSSScore   float64   `json:"cvss_score" db:"cvss_score"`
	Product     string    `json:"product" db:"product"`
	Version     string    `json:"version" db:"version"`
	VersionEnd  string    `json:"version_end" db:"version_end"`
	References  []Link    `json:"references"`
	Published   time.Time `json:"published,omitempty" db:"published"`
}

// Link 参考链接
type Link struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
