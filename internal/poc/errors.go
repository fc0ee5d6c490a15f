package poc

import (
	"errors"
	"fmt"
)

var (
	ErrRequest     = errors.New("请求错误")
	ErrInvalidURL  = errors.New("无效的目标地址")
	ErrExecution   = errors.New("POC执行错误")
	ErrPocNotFound = errors.New("POC不存在")
)

// Error POC执行过程中的错误，Kind 为上面的哨兵错误之一
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
}

// Is 使 errors.Is(err, ErrRequest) 之类的判断生效
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RequestError 包装传输层错误（连接失败、协议客户端错误等）
func RequestError(msg string, err error) error {
	return &Error{Kind: ErrRequest, Msg: msg, Err: err}
}

// URLError 目标地址无法解析
func URLError(target string, err error) error {
	return &Error{Kind: ErrInvalidURL, Msg: target, Err: err}
}

// ExecutionError 插件逻辑层面的失败
func ExecutionError(format string, args ...interface{}) error {
	return &Error{Kind: ErrExecution, Msg: fmt.Sprintf(format, args...)}
}
