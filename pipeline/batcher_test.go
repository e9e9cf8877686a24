package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBatches_SingleBatch(t *testing.T) {
	fragments := []Fragment{
		{Text: "Hello", Size: 24},
		{Text: "world", Size: 12},
		{Text: "", Size: 12},
		{Text: "Test", Size: 12},
	}

	batches := BuildBatches(fragments, 4000, DefaultSeparator)
	require.Len(t, batches, 1)
	assert.Equal(t, "Hello\n|||\nworld\n|||\nTest", batches[0].Text)
	assert.Equal(t, []int{0, 1, 3}, batches[0].Indices)
}

func TestBuildBatches_SplitsWhenBudgetExceeded(t *testing.T) {
	fragments := []Fragment{
		{Text: strings.Repeat("a", 3000), Size: 12},
		{Text: strings.Repeat("b", 3000), Size: 12},
	}

	batches := BuildBatches(fragments, 4000, DefaultSeparator)
	require.Len(t, batches, 2)
	assert.Equal(t, []int{0}, batches[0].Indices)
	assert.Equal(t, []int{1}, batches[1].Indices)
}

func TestBuildBatches_OversizedFragmentIsAlone(t *testing.T) {
	big := strings.Repeat("x", 5000)
	tests := []struct {
		name      string
		fragments []Fragment
		want      [][]int
	}{
		{
			name:      "oversized only",
			fragments: []Fragment{{Text: big}},
			want:      [][]int{{0}},
		},
		{
			name:      "oversized in the middle",
			fragments: []Fragment{{Text: "a"}, {Text: big}, {Text: "b"}},
			want:      [][]int{{0}, {1}, {2}},
		},
		{
			name:      "oversized first",
			fragments: []Fragment{{Text: big}, {Text: "a"}, {Text: "b"}},
			want:      [][]int{{0}, {1, 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := BuildBatches(tt.fragments, 4000, DefaultSeparator)
			require.Len(t, batches, len(tt.want))
			for i, b := range batches {
				assert.Equal(t, tt.want[i], b.Indices)
			}
			// 超长片段不被拆分
			for _, b := range batches {
				if b.Len() == 1 && utf8.RuneCountInString(b.Text) > 4000 {
					assert.Equal(t, big, b.Text)
				}
			}
		})
	}
}

func TestBuildBatches_SeparatorCountsTowardsBudget(t *testing.T) {
	fragments := []Fragment{{Text: "aaaa"}, {Text: "b"}, {Text: "c"}}

	// "aaaa" + 5 = 9；加 "b" 恰好 10；再加 "c" 超出
	batches := BuildBatches(fragments, 10, DefaultSeparator)
	require.Len(t, batches, 2)
	assert.Equal(t, []int{0, 1}, batches[0].Indices)
	assert.Equal(t, "aaaa\n|||\nb", batches[0].Text)
	assert.Equal(t, []int{2}, batches[1].Indices)
}

func TestBuildBatches_EmptyAndWhitespace(t *testing.T) {
	assert.Empty(t, BuildBatches(nil, 4000, DefaultSeparator))
	assert.Empty(t, BuildBatches([]Fragment{{Text: ""}, {Text: "  \t\n"}}, 4000, DefaultSeparator))

	batches := BuildBatches([]Fragment{{Text: "  padded  "}, {Text: " "}}, 4000, DefaultSeparator)
	require.Len(t, batches, 1)
	assert.Equal(t, "padded", batches[0].Text)
	assert.Equal(t, []int{0}, batches[0].Indices)
}

func TestBuildBatches_CountsRunes(t *testing.T) {
	fragments := []Fragment{{Text: "日本語"}, {Text: "中文"}}

	// 3 + 5 + 2 = 10 个字符，字节数远大于 10
	batches := BuildBatches(fragments, 10, DefaultSeparator)
	require.Len(t, batches, 1)
	assert.Equal(t, []int{0, 1}, batches[0].Indices)
}

func TestBuildBatches_Defaults(t *testing.T) {
	batches := BuildBatches([]Fragment{{Text: "a"}, {Text: "b"}}, 0, "")
	require.Len(t, batches, 1)
	assert.Equal(t, "a"+DefaultSeparator+"b", batches[0].Text)
}

func TestBuildBatches_Invariants(t *testing.T) {
	var fragments []Fragment
	var nonEmpty []int
	for i := 0; i < 200; i++ {
		text := strings.Repeat("w", (i*37)%450)
		if i%7 == 0 {
			text = "   "
		}
		fragments = append(fragments, Fragment{Text: text, Size: float64(i % 5)})
		if strings.TrimSpace(text) != "" {
			nonEmpty = append(nonEmpty, i)
		}
	}

	const maxChars = 1000
	batches := BuildBatches(fragments, maxChars, DefaultSeparator)

	var union []int
	for _, b := range batches {
		require.NotZero(t, b.Len())
		for j := 1; j < b.Len(); j++ {
			assert.Less(t, b.Indices[j-1], b.Indices[j], "indices must be strictly increasing")
		}
		if b.Len() > 1 {
			assert.LessOrEqual(t, utf8.RuneCountInString(b.Text), maxChars)
		}
		assert.Len(t, strings.Split(b.Text, SeparatorToken), b.Len())
		union = append(union, b.Indices...)
	}
	assert.Equal(t, nonEmpty, union)
}

func TestCoreToken(t *testing.T) {
	assert.Equal(t, "|||", CoreToken(DefaultSeparator))
	assert.Equal(t, "@@", CoreToken(" @@ "))
	assert.Equal(t, SeparatorToken, CoreToken("\n"))
}
