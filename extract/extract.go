// Package extract 从 PDF 中按阅读顺序提取带字号的文本行
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dslipakpdf "github.com/dslipak/pdf"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"pdf-translator/logging"
	"pdf-translator/pipeline"
)

var (
	// ErrNoText PDF 中没有可提取的文本（可能是扫描件）
	ErrNoText = errors.New("无法提取文本，可能是扫描件")
	// ErrUnreadable PDF 无法打开或已损坏
	ErrUnreadable = errors.New("PDF 文件无法读取")
)

const (
	// DefaultLineTolerance 同一行基线允许的偏差
	DefaultLineTolerance = 5.0
	// DefaultSize 无字号信息时使用的字号
	DefaultSize = 12.0
)

// Options 提取选项
type Options struct {
	LineTolerance float64
	DefaultSize   float64
}

// Document 提取结果
type Document struct {
	Path      string
	Title     string
	Pages     int
	Method    string // structured 或 plain
	Fragments []pipeline.Fragment
}

// Extractor PDF 文本提取器
type Extractor struct {
	opts Options
	log  *logging.Logger
}

// New 创建提取器
func New(opts Options, log *logging.Logger) *Extractor {
	if opts.LineTolerance <= 0 {
		opts.LineTolerance = DefaultLineTolerance
	}
	if opts.DefaultSize <= 0 {
		opts.DefaultSize = DefaultSize
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Extractor{opts: opts, log: log}
}

// Extract 提取文档。优先使用带坐标和字号的结构化提取，失败或为空时退回纯文本提取。
func (e *Extractor) Extract(ctx context.Context, path string) (*Document, error) {
	start := time.Now()

	doc, err := e.extractStructured(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.log.Warn("结构化提取失败，尝试纯文本提取", map[string]interface{}{"path": path, "error": err.Error()})
	}

	if doc == nil || len(doc.Fragments) == 0 {
		plain, plainErr := e.extractPlain(ctx, path)
		switch {
		case plainErr == nil:
			if doc != nil && plain.Title == "" {
				plain.Title = doc.Title
			}
			doc = plain
		case doc == nil:
			return nil, e.unreadable(path, err, plainErr)
		}
	}

	if len(doc.Fragments) == 0 {
		return nil, ErrNoText
	}

	// 纯文本提取的页数以 pdfcpu 为准
	if doc.Method == "plain" {
		if n, err := PageCount(path); err == nil && n > 0 {
			doc.Pages = n
		}
	}

	e.log.LogOperationTiming("extract", time.Since(start), map[string]interface{}{
		"path":      path,
		"pages":     doc.Pages,
		"fragments": len(doc.Fragments),
		"method":    doc.Method,
	})
	return doc, nil
}

// extractStructured 使用 ledongthuc/pdf 按文本对象提取
func (e *Extractor) extractStructured(ctx context.Context, path string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("解析 PDF 时发生 panic: %v", r)
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开PDF文件失败: %w", err)
	}
	defer file.Close()

	doc = &Document{
		Path:   path,
		Pages:  reader.NumPage(),
		Method: "structured",
		Title:  documentTitle(reader),
	}

	for pageNum := 1; pageNum <= doc.Pages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		lines, err := e.pageLines(page, pageNum)
		if err != nil {
			e.log.Warn("解析页面失败", map[string]interface{}{"page": pageNum, "error": err.Error()})
			continue
		}
		for _, line := range lines {
			doc.Fragments = append(doc.Fragments, pipeline.Fragment{Text: line.Text, Size: e.size(line.Size), Page: pageNum})
		}
	}

	return doc, nil
}

// pageLines 提取单页的行，单页 panic 不影响其它页
func (e *Extractor) pageLines(page pdf.Page, pageNum int) (lines []Line, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("提取第%d页文本时发生panic: %v", pageNum, r)
		}
	}()

	content := page.Content()
	if len(content.Text) == 0 {
		return nil, nil
	}

	glyphs := make([]Glyph, 0, len(content.Text))
	for _, t := range content.Text {
		glyphs = append(glyphs, Glyph{S: t.S, X: t.X, Y: t.Y, W: t.W, Size: t.FontSize})
	}
	return GroupLines(glyphs, e.opts.LineTolerance), nil
}

// extractPlain 使用 dslipak/pdf 提取纯文本，字号统一为默认值
func (e *Extractor) extractPlain(ctx context.Context, path string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dslipak/pdf 解析时发生 panic: %v", r)
		}
	}()

	reader, err := dslipakpdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dslipak/pdf打开失败: %w", err)
	}

	doc = &Document{Path: path, Pages: reader.NumPage(), Method: "plain"}
	for i := 1; i <= doc.Pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := reader.Page(i).GetPlainText(nil)
		if err != nil {
			e.log.Warn("dslipak/pdf 无法提取页面文本", map[string]interface{}{"page": i, "error": err.Error()})
			continue
		}
		for _, raw := range strings.Split(text, "\n") {
			if line := CleanText(raw); line != "" {
				doc.Fragments = append(doc.Fragments, pipeline.Fragment{Text: line, Size: e.opts.DefaultSize, Page: i})
			}
		}
	}

	return doc, nil
}

// unreadable 两种解析都失败时，用 pdfcpu 校验给出原因
func (e *Extractor) unreadable(path string, errs ...error) error {
	if verr := Validate(path); verr != nil {
		errs = append(errs, verr)
	}
	e.log.Error("PDF 无法读取", errors.Join(errs...), map[string]interface{}{"path": path})
	return fmt.Errorf("%w: %v", ErrUnreadable, errors.Join(errs...))
}

func (e *Extractor) size(s float64) float64 {
	if s <= 0 {
		return e.opts.DefaultSize
	}
	return s
}

// documentTitle 读取文档信息字典中的标题
func documentTitle(reader *pdf.Reader) string {
	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return ""
	}
	if title := info.Key("Title"); !title.IsNull() {
		return strings.TrimSpace(title.Text())
	}
	return ""
}

// Validate 使用 pdfcpu 校验 PDF 结构
func Validate(path string) error {
	return api.ValidateFile(path, model.NewDefaultConfiguration())
}

// PageCount 使用 pdfcpu 读取页数
func PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}
