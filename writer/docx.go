package writer

import (
	"fmt"
	"io"

	"github.com/gomutex/godocx"
)

// writeDocx 生成 Word 文档，标题层级对应 Heading 1-3，正文为普通段落
func writeDocx(out io.Writer, meta Meta, blocks []Block) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("创建 Word 文档失败: %w", err)
	}

	if _, err := doc.AddHeading(meta.displayTitle(), 0); err != nil {
		return fmt.Errorf("写入文档标题失败: %w", err)
	}

	for _, b := range blocks {
		if !b.IsHeading() {
			doc.AddParagraph(b.Text)
			continue
		}
		if _, err := doc.AddHeading(b.Text, uint(b.Level)); err != nil {
			return fmt.Errorf("写入标题失败: %w", err)
		}
	}

	return doc.Write(out)
}
