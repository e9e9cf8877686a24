package writer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdf-translator/pipeline"
)

// Meta 文档信息
type Meta struct {
	Title      string
	FileName   string
	SourceLang string
	TargetLang string
	Provider   string
	Pages      int
	CreatedAt  time.Time
}

func (m Meta) displayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	if m.FileName != "" {
		return strings.TrimSuffix(filepath.Base(m.FileName), filepath.Ext(m.FileName))
	}
	return "Translated Document"
}

// Options 写出选项
type Options struct {
	// FontPath PDF 输出使用的 TTF 字体，为空时使用内置 Helvetica（仅支持 cp1252 字符），
	// auto 时按目标语言查找系统字体
	FontPath string
}

// Writer 文档写出器
type Writer struct {
	opts Options
}

// New 创建写出器
func New(opts Options) *Writer {
	return &Writer{opts: opts}
}

// Write 以指定格式写出。original 仅在双语格式中使用，可为 nil。
func (w *Writer) Write(out io.Writer, format Format, meta Meta, translated, original []pipeline.Fragment) error {
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	switch format {
	case FormatText:
		return writeText(out, Structure(translated, nil))
	case FormatMarkdown:
		return writeMarkdown(out, meta, Structure(translated, nil))
	case FormatHTML:
		return writeHTML(out, meta, Structure(translated, nil))
	case FormatBilingual:
		return writeBilingual(out, meta, Structure(translated, original))
	case FormatPDF:
		return w.writePDF(out, meta, Structure(translated, nil))
	case FormatDocx:
		return writeDocx(out, meta, Structure(translated, nil))
	default:
		return fmt.Errorf("不支持的输出格式: %s", format)
	}
}

// WriteFile 写出到文件
func (w *Writer) WriteFile(path string, format Format, meta Meta, translated, original []pipeline.Fragment) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建输出文件失败: %w", err)
	}

	if err := w.Write(file, format, meta, translated, original); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}

// writeText 纯文本，块之间空一行
func writeText(out io.Writer, blocks []Block) error {
	bw := bufio.NewWriter(out)
	for i, b := range blocks {
		if i > 0 {
			bw.WriteString("\n")
		}
		bw.WriteString(b.Text)
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// writeMarkdown 标题用 #，正文为段落
func writeMarkdown(out io.Writer, meta Meta, blocks []Block) error {
	bw := bufio.NewWriter(out)
	fmt.Fprintf(bw, "<!-- %s (%s -> %s) -->\n\n", meta.displayTitle(), langLabel(meta.SourceLang), langLabel(meta.TargetLang))

	for _, b := range blocks {
		if b.IsHeading() {
			bw.WriteString(strings.Repeat("#", b.Level))
			bw.WriteString(" ")
			bw.WriteString(b.Text)
		} else {
			bw.WriteString(escapeMarkdown(b.Text))
		}
		bw.WriteString("\n\n")
	}
	return bw.Flush()
}

// escapeMarkdown 避免正文行首被解析为标题、列表或引用
func escapeMarkdown(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '#', '>', '-', '+', '*', '=':
		return `\` + s
	}
	return s
}

func langLabel(code string) string {
	if code == "" {
		return "auto"
	}
	return code
}
