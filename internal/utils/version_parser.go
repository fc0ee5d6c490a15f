package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	versionNumberRe = regexp.MustCompile(`\d+(\.\d+)*`)
	leadingDigitsRe = regexp.MustCompile(`^\d+`)
)

// VersionParser 版本号解析器
type VersionParser struct{}

func NewVersionParser() *VersionParser {
	return &VersionParser{}
}

// NormalizeVersion 从横幅或版本串中提取点分数字版本，
// 例如 "OpenSSH_8.9p1" -> "8.9"，"redis_version:6.2.6" -> "6.2.6"
func (vp *VersionParser) NormalizeVersion(version string) string {
	version = strings.TrimSpace(version)
	version = strings.TrimPrefix(version, "v")
	version = strings.TrimPrefix(version, "V")

	if match := versionNumberRe.FindString(version); match != "" {
		return match
	}
	return version
}

// CompareVersions 比较版本号，返回 -1 / 0 / 1
func (vp *VersionParser) CompareVersions(v1, v2 string) int {
	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")

	maxLen := len(parts1)
	if len(parts2) > maxLen {
		maxLen = len(parts2)
	}

	for i := 0; i < maxLen; i++ {
		var num1, num2 int
		if i < len(parts1) {
			num1 = vp.parsePart(parts1[i])
		}
		if i < len(parts2) {
			num2 = vp.parsePart(parts2[i])
		}

		if num1 > num2 {
			return 1
		}
		if num1 < num2 {
			return -1
		}
	}

	return 0
}

// InRange 判断版本是否落在 [start, end] 区间内，空边界表示不限
func (vp *VersionParser) InRange(version, start, end string) bool {
	version = vp.NormalizeVersion(version)
	if version == "" {
		return false
	}
	if start != "" && vp.CompareVersions(version, vp.NormalizeVersion(start)) < 0 {
		return false
	}
	if end != "" && vp.CompareVersions(version, vp.NormalizeVersion(end)) > 0 {
		return false
	}
	return true
}

func (vp *VersionParser) parsePart(part string) int {
	match := leadingDigitsRe.FindString(part)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}
