package scanner

import (
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// DefaultMaxTargets 单次解析允许展开的IPv6地址上限，IPv4 不受限制
const DefaultMaxTargets = 1 << 20

// TargetParser 把目标规格字符串解析为有序、去重的地址列表。
//
// 规格为逗号分隔的若干项，每项可以是单个地址、"起始-结束" 地址范围或CIDR网段。
// IPv6 范围只允许最后一个16位分段变化。
type TargetParser struct {
	MaxTargets int
}

func NewTargetParser() *TargetParser {
	return &TargetParser{MaxTargets: DefaultMaxTargets}
}

// ParseTargets 使用默认上限解析目标规格
func ParseTargets(spec string) ([]netip.Addr, error) {
	return NewTargetParser().Parse(spec)
}

// Parse 解析目标规格，输出顺序与各项出现顺序一致，范围内按数值升序
func (tp *TargetParser) Parse(spec string) ([]netip.Addr, error) {
	var (
		addrs []netip.Addr
		seen  = make(map[netip.Addr]struct{})
		v6    int
	)

	limit := tp.MaxTargets
	if limit <= 0 {
		limit = DefaultMaxTargets
	}

	emit := func(addr netip.Addr, atom string) error {
		if _, dup := seen[addr]; dup {
			return nil
		}
		if addr.Is6() {
			if v6 >= limit {
				return parseError(ErrTooManyTargets, atom)
			}
			v6++
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
		return nil
	}

	for _, atom := range strings.Split(spec, ",") {
		atom = strings.TrimSpace(atom)
		if atom == "" {
			continue
		}

		var err error
		switch {
		case strings.Contains(atom, "/"):
			err = tp.expandCIDR(atom, emit)
		case strings.Contains(atom, "-"):
			err = tp.expandRange(atom, emit)
		default:
			addr, perr := netip.ParseAddr(atom)
			if perr != nil {
				return nil, parseError(ErrInvalidAddress, atom)
			}
			err = emit(addr, atom)
		}
		if err != nil {
			return nil, err
		}
	}

	return addrs, nil
}

func (tp *TargetParser) expandCIDR(atom string, emit func(netip.Addr, string) error) error {
	prefix, err := netip.ParsePrefix(atom)
	if err != nil {
		return parseError(ErrInvalidCIDR, atom)
	}
	return walkRange(netipx.RangeOfPrefix(prefix.Masked()), atom, emit)
}

func (tp *TargetParser) expandRange(atom string, emit func(netip.Addr, string) error) error {
	parts := strings.Split(atom, "-")
	if len(parts) != 2 {
		return parseError(ErrInvalidAddress, atom)
	}

	start, err := netip.ParseAddr(strings.TrimSpace(parts[0]))
	if err != nil {
		return parseError(ErrInvalidAddress, atom)
	}
	end, err := netip.ParseAddr(strings.TrimSpace(parts[1]))
	if err != nil {
		return parseError(ErrInvalidAddress, atom)
	}
	start, end = start.WithZone(""), end.WithZone("")

	if start.Is4() != end.Is4() {
		return parseError(ErrVersionMismatch, atom)
	}

	if start.Is6() {
		a, b := start.As16(), end.As16()
		if [14]byte(a[:14]) != [14]byte(b[:14]) {
			return parseError(ErrUnsupportedRange, atom)
		}
	}

	// 起始大于结束时范围无效，不产生任何地址
	return walkRange(netipx.IPRangeFrom(start, end), atom, emit)
}

func walkRange(r netipx.IPRange, atom string, emit func(netip.Addr, string) error) error {
	if !r.IsValid() {
		return nil
	}
	for addr := r.From(); addr.IsValid(); addr = addr.Next() {
		if err := emit(addr, atom); err != nil {
			return err
		}
		if addr == r.To() {
			break
		}
	}
	return nil
}
