package advisory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"pocsuite/internal/model"
	"pocsuite/internal/utils"
)

const advisoryColumns = `cve_id, poc_name, title, description, severity, cvss_score, product, version, version_end, refs, published`

// Lookup 查找与服务指纹匹配的公告。
// 服务版本未知时无法排除，按产品名返回全部；版本已知时按 [version, version_end] 过滤。
func (d *Database) Lookup(service model.ServiceInfo) ([]model.Advisory, error) {
	rows, err := d.db.Query(`
		SELECT `+advisoryColumns+`
		FROM advisories
		WHERE product = ?
		ORDER BY cvss_score DESC, cve_id, poc_name
	`, strings.ToLower(service.Name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all, err := scanAdvisories(rows)
	if err != nil {
		return nil, err
	}

	if service.Version == "" {
		return all, nil
	}

	vp := utils.NewVersionParser()
	var matched []model.Advisory
	for _, a := range all {
		if a.Version == "" && a.VersionEnd == "" {
			matched = append(matched, a)
			continue
		}
		if vp.InRange(service.Version, a.Version, a.VersionEnd) {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

// ByPoc 返回某个插件对应的公告
func (d *Database) ByPoc(pocName string) ([]model.Advisory, error) {
	rows, err := d.db.Query(`
		SELECT `+advisoryColumns+`
		FROM advisories
		WHERE poc_name = ?
		ORDER BY cve_id
	`, pocName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAdvisories(rows)
}

// ByCVE 按CVE编号查找公告
func (d *Database) ByCVE(cveID string) ([]model.Advisory, error) {
	rows, err := d.db.Query(`
		SELECT `+advisoryColumns+`
		FROM advisories
		WHERE cve_id = ?
		ORDER BY poc_name
	`, strings.ToUpper(cveID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAdvisories(rows)
}

func scanAdvisories(rows *sql.Rows) ([]model.Advisory, error) {
	var out []model.Advisory
	for rows.Next() {
		var (
			a         model.Advisory
			severity  string
			refs      sql.NullString
			published sql.NullTime
		)
		err := rows.Scan(&a.CVEID, &a.PocName, &a.Title, &a.Description, &severity, &a.CVSSScore,
			&a.Product, &a.Version, &a.VersionEnd, &refs, &published)
		if err != nil {
			return nil, err
		}
		if sev, err := model.ParseSeverity(severity); err == nil {
			a.Severity = sev
		}
		if refs.Valid && refs.String != "" {
			if err := json.Unmarshal([]byte(refs.String), &a.References); err != nil {
				return nil, fmt.Errorf("解析公告 %s/%s 的参考链接失败: %w", a.PocName, a.CVEID, err)
			}
		}
		if published.Valid {
			a.Published = published.Time
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Suggest 为发现的每个开放端口给出值得运行的POC和相关CVE
func (d *Database) Suggest(hosts []model.Host) ([]model.Suggestion, error) {
	var out []model.Suggestion
	for _, host := range hosts {
		ports := make([]uint16, 0, len(host.Ports))
		for port := range host.Ports {
			ports = append(ports, port)
		}
		sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })

		for _, port := range ports {
			service := host.Ports[port]
			advisories, err := d.Lookup(service)
			if err != nil {
				return nil, fmt.Errorf("查询 %s 的公告失败: %w", service.Name, err)
			}
			for _, a := range advisories {
				out = append(out, model.Suggestion{
					Address: host.Address.String(),
					Port:    port,
					Target:  netip.AddrPortFrom(host.Address, port).String(),
					Service: service.Name,
					Poc:     a.PocName,
					CVEID:   a.CVEID,
					Reason:  reason(a, service),
				})
			}
		}
	}
	return out, nil
}

func reason(a model.Advisory, service model.ServiceInfo) string {
	r := fmt.Sprintf("[%s] %s", a.Severity, a.Title)
	if service.Version != "" && (a.Version != "" || a.VersionEnd != "") {
		r += fmt.Sprintf(" (版本 %s 位于 %s - %s)", service.Version, a.Version, a.VersionEnd)
	}
	return r
}
