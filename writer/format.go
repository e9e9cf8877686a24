package writer

import (
	"fmt"
	"strings"
)

// Format 输出格式
type Format string

const (
	FormatText      Format = "txt"
	FormatHTML      Format = "html"
	FormatMarkdown  Format = "md"
	FormatPDF       Format = "pdf"
	FormatBilingual Format = "bilingual" // 原文译文对照的 HTML
	FormatDocx      Format = "docx"
)

// Formats 全部输出格式
var Formats = []Format{FormatText, FormatHTML, FormatMarkdown, FormatPDF, FormatBilingual, FormatDocx}

// ParseFormat 解析格式名，空字符串返回 txt
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "txt", "text":
		return FormatText, nil
	case "html", "htm":
		return FormatHTML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "pdf":
		return FormatPDF, nil
	case "bilingual", "bilingual-html":
		return FormatBilingual, nil
	case "docx", "word":
		return FormatDocx, nil
	}
	return "", fmt.Errorf("不支持的输出格式: %s", s)
}

// Extension 文件扩展名
func (f Format) Extension() string {
	switch f {
	case FormatHTML:
		return ".html"
	case FormatMarkdown:
		return ".md"
	case FormatPDF:
		return ".pdf"
	case FormatBilingual:
		return ".bilingual.html"
	case FormatDocx:
		return ".docx"
	default:
		return ".txt"
	}
}

// ContentType HTTP Content-Type
func (f Format) ContentType() string {
	switch f {
	case FormatHTML, FormatBilingual:
		return "text/html; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "text/plain; charset=utf-8"
	}
}
