package scanner

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCIDR      = errors.New("无效的CIDR")
	ErrInvalidAddress   = errors.New("无效的IP地址")
	ErrVersionMismatch  = errors.New("地址范围两端IP版本不一致")
	ErrUnsupportedRange = errors.New("IPv6范围仅支持最后一段变化")
	ErrTooManyTargets   = errors.New("目标地址数量超出上限")
	ErrInvalidPort      = errors.New("无效的端口")
	ErrNetwork          = errors.New("网络错误")
)

// ParseError 目标或端口规格解析失败
type ParseError struct {
	Kind  error
	Token string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Token)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

func parseError(kind error, token string) error {
	return &ParseError{Kind: kind, Token: token}
}

func networkError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrNetwork, op, err)
}
