package translator

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaExceeded 翻译服务限流或额度耗尽
	ErrQuotaExceeded = errors.New("翻译服务额度耗尽或被限流")
	// ErrEmptyResult 翻译服务未返回结果
	ErrEmptyResult = errors.New("API 未返回翻译结果")
	// ErrUnsupportedProvider 未知的提供商类型
	ErrUnsupportedProvider = errors.New("不支持的提供商类型")
)

// StatusError 非 200 的 HTTP 响应
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API 返回错误 (状态码 %d): %s", e.Code, e.Body)
}

// Is 429 视为额度耗尽
func (e *StatusError) Is(target error) bool {
	return target == ErrQuotaExceeded && e.Code == 429
}

// TranslationError 翻译失败（网络、额度、超时、格式错误等）
type TranslationError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *TranslationError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("%s 翻译失败（尝试 %d 次后）: %v", e.Provider, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s 翻译失败: %v", e.Provider, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }
