package scanner

import (
	"errors"
	"testing"

	"pocsuite/internal/model"
)

func equalPorts(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParsePortsDefault(t *testing.T) {
	ports, err := ParsePorts("")
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if !equalPorts(ports, model.DefaultPorts) {
		t.Errorf("期望默认端口 %v, 实际得到 %v", model.DefaultPorts, ports)
	}

	// 修改返回值不能影响默认列表
	ports[0] = 1
	if model.DefaultPorts[0] != 21 {
		t.Error("默认端口列表被意外修改")
	}
}

func TestParsePortsListAndRange(t *testing.T) {
	ports, err := ParsePorts("80,443,8000-8002")
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	want := []uint16{80, 443, 8000, 8001, 8002}
	if !equalPorts(ports, want) {
		t.Errorf("期望 %v, 实际得到 %v", want, ports)
	}
}

func TestParsePortsDeduplicatesAndSorts(t *testing.T) {
	ports, err := ParsePorts("443, 22, 20-23, 22")
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	want := []uint16{20, 21, 22, 23, 443}
	if !equalPorts(ports, want) {
		t.Errorf("期望 %v, 实际得到 %v", want, ports)
	}
}

func TestParsePortsFullRange(t *testing.T) {
	ports, err := ParsePorts("65530-65535")
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(ports) != 6 || ports[5] != 65535 {
		t.Errorf("期望 65530-65535 共6个端口, 实际得到 %v", ports)
	}
}

func TestParsePortsInvalid(t *testing.T) {
	tests := []struct {
		spec  string
		token string
	}{
		{"notaport", "notaport"},
		{"80,abc", "abc"},
		{"0", "0"},
		{"65536", "65536"},
		{"100-x", "x"},
		{"200-100", "200-100"},
		{"1-2-3", "1-2-3"},
	}

	for _, tt := range tests {
		_, err := ParsePorts(tt.spec)
		if !errors.Is(err, ErrInvalidPort) {
			t.Errorf("%q: 期望 ErrInvalidPort, 实际得到 %v", tt.spec, err)
			continue
		}
		var perr *ParseError
		if errors.As(err, &perr) && perr.Token != tt.token {
			t.Errorf("%q: 期望错误字段 %q, 实际得到 %q", tt.spec, tt.token, perr.Token)
		}
	}
}
