package scanner

import (
	"sort"
	"strconv"
	"strings"

	"pocsuite/internal/model"
)

// ParsePorts 解析端口规格，空串表示未指定，返回默认常见端口
func ParsePorts(spec string) ([]uint16, error) {
	if strings.TrimSpace(spec) == "" {
		return model.DefaultPortList(), nil
	}

	seen := make(map[uint16]struct{})
	var ports []uint16
	add := func(p uint16) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			ports = append(ports, p)
		}
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			rangeParts := strings.Split(part, "-")
			if len(rangeParts) != 2 {
				return nil, parseError(ErrInvalidPort, part)
			}

			start, err := parsePort(rangeParts[0])
			if err != nil {
				return nil, err
			}
			end, err := parsePort(rangeParts[1])
			if err != nil {
				return nil, err
			}
			if start > end {
				return nil, parseError(ErrInvalidPort, part)
			}

			for p := uint32(start); p <= uint32(end); p++ {
				add(uint16(p))
			}
			continue
		}

		port, err := parsePort(part)
		if err != nil {
			return nil, err
		}
		add(port)
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
	return ports, nil
}

func parsePort(token string) (uint16, error) {
	token = strings.TrimSpace(token)
	n, err := strconv.ParseUint(token, 10, 16)
	if err != nil || n == 0 {
		return 0, parseError(ErrInvalidPort, token)
	}
	return uint16(n), nil
}
