package translator

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// AutoDetect 源语言自动检测
const AutoDetect = "auto"

// NormalizeLanguage 规范化语言代码，"auto" 原样返回
func NormalizeLanguage(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, AutoDetect) {
		return AutoDetect, nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("无效的语言代码 %q: %w", code, err)
	}
	return tag.String(), nil
}

// LanguageName 语言的英文名称，用于 LLM 提示词
func LanguageName(code string) string {
	if code == "" || strings.EqualFold(code, AutoDetect) {
		return "the detected source language"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

// baseCode 取主语言子标签（zh-Hans -> zh），用于只认两位代码的服务
func baseCode(code string) string {
	if code == "" || strings.EqualFold(code, AutoDetect) {
		return AutoDetect
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	base, _ := tag.Base()
	return base.String()
}
