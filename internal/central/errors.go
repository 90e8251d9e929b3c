package central

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoToken：调用方未持有凭据，请求不会发出
	ErrNoToken = errors.New("central: missing bearer token")
	// ErrUnauthorized：远端返回 401；*StatusError 在 Status==401 时满足 errors.Is
	ErrUnauthorized = errors.New("central: unauthorized")
)

// StatusError：远端非 2xx 响应，携带状态码与远端消息
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("central %s: status %d: %s", e.Op, e.Status, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// NetworkError：传输层失败（连接、超时、响应体解码）
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return "central " + e.Op + ": " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// IsAuth：缺失或被拒绝的凭据
func IsAuth(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNoToken)
}

// StatusOf：按错误类别映射对外状态码；供中继层复用
func StatusOf(err error) (int, string) {
	var se *StatusError
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrNoToken):
		return http.StatusUnauthorized, "Missing Authorization header"
	case errors.As(err, &se):
		return se.Status, se.Message
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return http.StatusBadGateway, ne.Err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}
