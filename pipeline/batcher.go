package pipeline

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxChars 单个批次的字符预算
	DefaultMaxChars = 4000

	// SeparatorToken 分隔符的核心标记，拆分时只认这一部分
	SeparatorToken = "|||"

	// DefaultSeparator 批次内片段之间的分隔符
	DefaultSeparator = "\n" + SeparatorToken + "\n"
)

// Batch 一次合并请求
type Batch struct {
	Text    string `json:"text"`
	Indices []int  `json:"indices"` // 在原始片段序列中的位置
}

// Len 批次成员数
func (b Batch) Len() int {
	return len(b.Indices)
}

// BuildBatches 按字符预算把片段分组成批次。
//
// 空白片段不参与翻译。累计计数 = 已加入成员的 trim 后长度 + 每个成员一个分隔符长度；
// 加入下一个片段会超出 maxChars 时先关闭当前批次。单个片段本身超出预算时不拆分，
// 独占一个批次。长度按字符（rune）计算。
func BuildBatches(fragments []Fragment, maxChars int, separator string) []Batch {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if separator == "" {
		separator = DefaultSeparator
	}
	sepLen := utf8.RuneCountInString(separator)

	var (
		batches []Batch
		texts   []string
		indices []int
		running int
	)

	flush := func() {
		if len(indices) == 0 {
			return
		}
		batches = append(batches, Batch{
			Text:    strings.Join(texts, separator),
			Indices: indices,
		})
		texts, indices, running = nil, nil, 0
	}

	for i, f := range fragments {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		n := utf8.RuneCountInString(text)

		if len(indices) > 0 && running+n > maxChars {
			flush()
		}

		texts = append(texts, text)
		indices = append(indices, i)
		running += n + sepLen
	}
	flush()

	return batches
}

// CoreToken 从分隔符中取出核心标记（去掉两侧空白）
func CoreToken(separator string) string {
	if token := strings.TrimSpace(separator); token != "" {
		return token
	}
	return SeparatorToken
}
