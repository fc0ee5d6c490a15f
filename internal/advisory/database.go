package advisory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"pocsuite/internal/model"
	"pocsuite/internal/poc"
	"pocsuite/internal/utils"
)

// MemoryPath 不落盘的内存数据库
const MemoryPath = ":memory:"

// Database 漏洞公告库，保存插件的漏洞信息以及从NVD补充的CVE数据
type Database struct {
	db     *sql.DB
	path   string
	logger *utils.Logger
}

// NewDatabase 打开（或创建）公告库，dbPath 为空时使用内存数据库
func NewDatabase(dbPath string) (*Database, error) {
	logger := utils.NewLogger("advisory")

	if dbPath == "" {
		dbPath = MemoryPath
	}
	if dbPath != MemoryPath {
		// 确保目录存在
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// 内存库每个连接各自独立，只保留一个连接
	db.SetMaxOpenConns(1)

	d := &Database{
		db:     db,
		path:   dbPath,
		logger: logger,
	}

	if err := d.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化数据表失败: %w", err)
	}
	return d, nil
}

func (d *Database) initTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS advisories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cve_id TEXT NOT NULL DEFAULT '',
		poc_name TEXT NOT NULL DEFAULT '',
		title TEXT,
		description TEXT,
		severity TEXT,
		cvss_score REAL,
		product TEXT,
		version TEXT,
		version_end TEXT,
		refs TEXT,
		published DATE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (cve_id, poc_name)
	);

	CREATE INDEX IF NOT EXISTS idx_product ON advisories(product);
	CREATE INDEX IF NOT EXISTS idx_poc_name ON advisories(poc_name);

	CREATE TABLE IF NOT EXISTS sync_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		synced_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		source TEXT,
		records INTEGER
	);
	`

	_, err := d.db.Exec(schema)
	return err
}

// InsertAdvisory 插入或覆盖一条公告，(cve_id, poc_name) 相同视为同一条
func (d *Database) InsertAdvisory(a model.Advisory) error {
	refs, err := json.Marshal(a.References)
	if err != nil {
		return err
	}

	var published interface{}
	if !a.Published.IsZero() {
		published = a.Published
	}

	_, err = d.db.Exec(`
		INSERT OR REPLACE INTO advisories
		(cve_id, poc_name, title, description, severity, cvss_score, product, version, version_end, refs, published)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.CVEID, a.PocName, a.Title, a.Description, a.Severity.String(), a.CVSSScore,
		strings.ToLower(a.Product), a.Version, a.VersionEnd, string(refs), published,
	)
	return err
}

// SyncRegistry 把注册表中每个插件的漏洞信息写入公告库，返回写入条数
func (d *Database) SyncRegistry(reg *poc.Registry) (int, error) {
	count := 0
	for name, info := range reg.Infos() {
		if err := d.InsertAdvisory(FromVulnInfo(name, info)); err != nil {
			d.logger.Error("写入插件公告失败 %s: %v", name, err)
			return count, err
		}
		count++
	}

	d.recordSync("registry", count)
	d.logger.Debug("已同步 %d 个插件的漏洞信息", count)
	return count, nil
}

// FromVulnInfo 把插件的漏洞信息转换为公告
func FromVulnInfo(pocName string, info model.VulnInfo) model.Advisory {
	a := model.Advisory{
		CVEID:       info.CVEID,
		PocName:     pocName,
		Title:       info.Name,
		Description: info.Description,
		Severity:    info.Severity,
		Product:     info.Product,
	}

	// "All" 表示不限版本
	var versions []string
	for _, v := range info.AffectedVersions {
		if !strings.EqualFold(v, "all") {
			versions = append(versions, v)
		}
	}
	if len(versions) > 0 {
		a.Version = versions[0]
		a.VersionEnd = versions[len(versions)-1]
	}

	for _, ref := range info.References {
		a.References = append(a.References, model.Link{Name: "Reference", URL: ref})
	}
	if info.CVEID != "" {
		a.References = append(a.References, nvdLink(info.CVEID))
	}
	return a
}

func nvdLink(cveID string) model.Link {
	return model.Link{Name: "NVD", URL: fmt.Sprintf("https://nvd.nist.gov/vuln/detail/%s", cveID)}
}

func (d *Database) recordSync(source string, records int) {
	_, err := d.db.Exec(`INSERT INTO sync_history (source, records) VALUES (?, ?)`, source, records)
	if err != nil {
		d.logger.Error("记录同步历史失败: %v", err)
	}
}

// Count 公告总数
func (d *Database) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM advisories").Scan(&count)
	return count, err
}

// SyncRecord 一次同步的记录
type SyncRecord struct {
	Source  string `json:"source"`
	Records int    `json:"records"`
}

// History 最近的同步记录，新的在前
func (d *Database) History() ([]SyncRecord, error) {
	rows, err := d.db.Query(`
		SELECT source, records
		FROM sync_history
		ORDER BY id DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []SyncRecord
	for rows.Next() {
		var r SyncRecord
		if err := rows.Scan(&r.Source, &r.Records); err != nil {
			continue
		}
		history = append(history, r)
	}
	return history, rows.Err()
}

func (d *Database) Close() error {
	return d.db.Close()
}
