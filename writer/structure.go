// Package writer 把翻译后的片段按字号还原标题层级并输出为各种格式
package writer

import (
	"sort"
	"strings"

	"pdf-translator/pipeline"
)

// DefaultModeSize 没有任何字号时的正文字号
const DefaultModeSize = 12.0

// Block 输出文档中的一个块
type Block struct {
	Level    int     `json:"level"` // 1-3 为标题，0 为正文
	Text     string  `json:"text"`
	Original string  `json:"original,omitempty"` // 双语输出时的原文
	Page     int     `json:"page,omitempty"`
	Size     float64 `json:"size"`
}

// IsHeading 是否为标题
func (b Block) IsHeading() bool { return b.Level > 0 }

// ModeSize 出现次数最多的字号，次数相同取较小者
func ModeSize(fragments []pipeline.Fragment) float64 {
	if len(fragments) == 0 {
		return DefaultModeSize
	}

	counts := make(map[float64]int)
	for _, f := range fragments {
		counts[f.Size]++
	}

	sizes := make([]float64, 0, len(counts))
	for s := range counts {
		sizes = append(sizes, s)
	}
	sort.Float64s(sizes)

	mode, best := sizes[0], 0
	for _, s := range sizes {
		if counts[s] > best {
			mode, best = s, counts[s]
		}
	}
	return mode
}

// HeadingLevel 按与正文字号的差值确定标题层级
func HeadingLevel(size, mode float64) int {
	switch {
	case size >= mode+10:
		return 1
	case size >= mode+5:
		return 2
	case size >= mode+2:
		return 3
	default:
		return 0
	}
}

// Structure 生成块序列。original 可为 nil；非空时必须与 translated 等长。
// 空文本的片段参与正文字号统计，但不输出。
func Structure(translated, original []pipeline.Fragment) []Block {
	mode := ModeSize(translated)

	blocks := make([]Block, 0, len(translated))
	for i, f := range translated {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		b := Block{
			Level: HeadingLevel(f.Size, mode),
			Text:  text,
			Page:  f.Page,
			Size:  f.Size,
		}
		if i < len(original) {
			b.Original = strings.TrimSpace(original[i].Text)
		}
		blocks = append(blocks, b)
	}
	return blocks
}
