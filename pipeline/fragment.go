// Package pipeline 实现分批翻译流水线：切批、合并请求、拆分回填与逐条降级。
package pipeline

import "context"

// Fragment 提取出的文本单元（一行或一段）
// Size 和 Page 为结构属性，翻译过程中原样保留。
type Fragment struct {
	Text string  `json:"text"`
	Size float64 `json:"size"`
	Page int     `json:"page,omitempty"`
}

// CloneFragments 复制片段切片，原切片不会被修改
func CloneFragments(fragments []Fragment) []Fragment {
	out := make([]Fragment, len(fragments))
	copy(out, fragments)
	return out
}

// Translator 翻译客户端句柄
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// TranslatorFunc 函数适配器
type TranslatorFunc func(ctx context.Context, text, sourceLang, targetLang string) (string, error)

// Translate 实现 Translator 接口
func (f TranslatorFunc) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return f(ctx, text, sourceLang, targetLang)
}

// Languages 翻译方向
type Languages struct {
	Source string
	Target string
}
