package writer

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// 各级标题与正文的字号（pt）
var pdfSizes = map[int]float64{1: 20, 2: 16, 3: 13, 0: 11}

// writePDF 使用 gofpdf 生成重新排版的 PDF
func (w *Writer) writePDF(out io.Writer, meta Meta, blocks []Block) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(meta.displayTitle(), true)
	pdf.SetCreator("pdf-translator", true)
	pdf.SetSubject(fmt.Sprintf("%s -> %s", langLabel(meta.SourceLang), langLabel(meta.TargetLang)), true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	family, headingStyle := "Helvetica", "B"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if fontPath := w.resolveFont(meta.TargetLang); fontPath != "" {
		// UTF-8 字体只注册了常规字形，标题靠字号区分
		family, headingStyle = "body", ""
		pdf.AddUTF8Font(family, "", fontPath)
		tr = func(s string) string { return s }
	}

	pdf.AddPage()
	for _, b := range blocks {
		size := pdfSizes[b.Level]
		style := ""
		if b.IsHeading() {
			style = headingStyle
			pdf.Ln(size * 0.2)
		}
		pdf.SetFont(family, style, size)
		pdf.MultiCell(0, size*0.5, tr(b.Text), "", "L", false)
		pdf.Ln(size * 0.25)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("生成 PDF 失败: %w", err)
	}
	return pdf.Output(out)
}
