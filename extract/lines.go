package extract

import (
	"math"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Glyph 页面上的一个文本对象
type Glyph struct {
	S    string
	X    float64
	Y    float64 // 基线
	W    float64
	Size float64
}

// Line 按基线合并后的一行
type Line struct {
	Text string
	Size float64 // 行内最大字号
}

// GroupLines 按基线 Y 把文本对象合并成行，与行首基线相差超过 tolerance 即换行。
// 同一行内水平间距超过字号的五分之一时补一个空格。空行被丢弃。
func GroupLines(glyphs []Glyph, tolerance float64) []Line {
	var (
		lines   []Line
		sb      strings.Builder
		lineY   float64
		maxSize float64
		prevEnd float64
		prevW   float64
		started bool
	)

	commit := func() {
		if text := CleanText(sb.String()); text != "" {
			lines = append(lines, Line{Text: text, Size: maxSize})
		}
		sb.Reset()
		maxSize = 0
	}

	for _, g := range glyphs {
		if !started || math.Abs(g.Y-lineY) > tolerance {
			if started {
				commit()
			}
			started = true
			lineY = g.Y
		} else if sb.Len() > 0 && prevW > 0 && needsSpace(g, prevEnd) {
			sb.WriteByte(' ')
		}

		sb.WriteString(g.S)
		prevEnd = g.X + g.W
		prevW = g.W
		if g.Size > maxSize {
			maxSize = g.Size
		}
	}
	if started {
		commit()
	}

	return lines
}

// needsSpace 与上一个文本对象之间是否存在词间距，宽度未知时不判断
func needsSpace(g Glyph, prevEnd float64) bool {
	gap := g.X - prevEnd
	threshold := g.Size * 0.2
	if threshold <= 0 {
		threshold = 1
	}
	return gap > threshold
}

// CleanText NFC 规范化并折叠空白
func CleanText(s string) string {
	s = norm.NFC.String(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
