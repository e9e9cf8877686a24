package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingTranslator 记录调用次数的测试翻译器
type countingTranslator struct {
	calls []string
	fn    func(text string) (string, error)
}

func (c *countingTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	c.calls = append(c.calls, text)
	return c.fn(text)
}

func upper(text string) (string, error) { return strings.ToUpper(text), nil }

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		translated string
		want       int
		aligned    bool
		parts      []string
	}{
		{"exact separator", "A\n|||\nB", 2, true, []string{"A", "B"}},
		{"whitespace stripped", "A|||B|||C", 3, true, []string{"A", "B", "C"}},
		{"extra spaces", "  A  \n ||| \n B ", 2, true, []string{"A", "B"}},
		{"single member", "Halo", 1, true, []string{"Halo"}},
		{"merged separator", "A B", 2, false, nil},
		{"duplicated separator", "A|||B|||", 2, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Split(tt.translated, SeparatorToken, tt.want)
			assert.Equal(t, tt.aligned, a.IsAligned())
			if tt.aligned {
				assert.Equal(t, tt.parts, a.Parts())
			}
		})
	}

	assert.Equal(t, 1, Split("merged", "|||", 3).Got())
}

func TestReconcile_FastPath(t *testing.T) {
	original := []Fragment{{Text: "one", Size: 10}, {Text: "two", Size: 11}, {Text: "three", Size: 12}}
	results := CloneFragments(original)
	client := &countingTranslator{fn: upper}
	r := NewReconciler(client, DefaultSeparator, nil)

	batch := Batch{Text: "one\n|||\nthree", Indices: []int{0, 2}}
	report := r.Reconcile(context.Background(), batch, "SATU\n|||\nTIGA", nil, original, results, Languages{"en", "id"})

	assert.Equal(t, OutcomeFastPath, report.Outcome)
	assert.Equal(t, 2, report.Parts)
	assert.Empty(t, client.calls)
	assert.Equal(t, "SATU", results[0].Text)
	assert.Equal(t, "two", results[1].Text, "index outside the batch must not be touched")
	assert.Equal(t, "TIGA", results[2].Text)
}

func TestReconcile_MisalignedFallsBack(t *testing.T) {
	original := []Fragment{{Text: " alpha "}, {Text: "beta"}, {Text: "gamma"}}
	results := CloneFragments(original)
	client := &countingTranslator{fn: upper}
	r := NewReconciler(client, DefaultSeparator, nil)

	batch := Batch{Text: "alpha\n|||\nbeta\n|||\ngamma", Indices: []int{0, 1, 2}}
	report := r.Reconcile(context.Background(), batch, "ALPHA BETA\n|||\nGAMMA", nil, original, results, Languages{"auto", "id"})

	assert.Equal(t, OutcomeMisaligned, report.Outcome)
	assert.True(t, report.Fallback())
	assert.Equal(t, 2, report.Parts)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, client.calls, "fallback translates trimmed originals one by one")
	assert.Equal(t, 3, report.Calls)
	assert.Equal(t, []string{"ALPHA", "BETA", "GAMMA"}, texts(results))
}

func TestReconcile_ProviderErrorFallsBack(t *testing.T) {
	original := []Fragment{{Text: "alpha"}, {Text: "beta"}}
	results := CloneFragments(original)
	client := &countingTranslator{fn: upper}
	r := NewReconciler(client, DefaultSeparator, nil)

	batch := Batch{Text: "alpha\n|||\nbeta", Indices: []int{0, 1}}
	callErr := errors.New("quota exceeded")
	report := r.Reconcile(context.Background(), batch, "", callErr, original, results, Languages{"en", "id"})

	assert.Equal(t, OutcomeProviderFailed, report.Outcome)
	assert.ErrorIs(t, report.Err, callErr)
	assert.Len(t, client.calls, 2)
	assert.Equal(t, []string{"ALPHA", "BETA"}, texts(results))
}

func TestReconcile_MemberFailureKeepsOriginal(t *testing.T) {
	original := []Fragment{{Text: "good"}, {Text: "bad "}, {Text: "fine"}}
	results := CloneFragments(original)
	errBad := errors.New("network down")
	client := &countingTranslator{fn: func(text string) (string, error) {
		if text == "bad" {
			return "", errBad
		}
		return strings.ToUpper(text), nil
	}}
	r := NewReconciler(client, DefaultSeparator, nil)

	batch := Batch{Text: "good\n|||\nbad\n|||\nfine", Indices: []int{0, 1, 2}}
	report := r.Reconcile(context.Background(), batch, "", errors.New("timeout"), original, results, Languages{"en", "id"})

	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Index)
	assert.ErrorIs(t, report.Failures[0], errBad)
	assert.Equal(t, []string{"GOOD", "bad ", "FINE"}, texts(results))
}

func TestReconcile_BlankAlignedPartKeepsOriginal(t *testing.T) {
	original := []Fragment{{Text: "one"}, {Text: "two"}}
	results := CloneFragments(original)
	client := &countingTranslator{fn: upper}
	r := NewReconciler(client, DefaultSeparator, nil)

	batch := Batch{Text: "one\n|||\ntwo", Indices: []int{0, 1}}
	report := r.Reconcile(context.Background(), batch, "SATU\n|||\n  ", nil, original, results, Languages{"en", "id"})

	assert.Equal(t, OutcomeFastPath, report.Outcome)
	assert.Empty(t, client.calls)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Index)
	assert.Equal(t, []string{"SATU", "two"}, texts(results))
}

func TestReconcile_BlankFallbackKeepsOriginal(t *testing.T) {
	original := []Fragment{{Text: "Hello", Size: 12}, {Text: "World", Size: 12}}
	results := CloneFragments(original)
	client := &countingTranslator{fn: func(text string) (string, error) {
		if text == "World" {
			return "  \n", nil
		}
		return strings.ToUpper(text), nil
	}}
	r := NewReconciler(client, DefaultSeparator, nil)

	batch := Batch{Text: "Hello\n|||\nWorld", Indices: []int{0, 1}}
	report := r.Reconcile(context.Background(), batch, "HELLO WORLD", nil, original, results, Languages{"en", "id"})

	assert.Equal(t, OutcomeMisaligned, report.Outcome)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Index)
	assert.ErrorIs(t, report.Failures[0], ErrBlankTranslation)
	assert.Equal(t, []string{"HELLO", "World"}, texts(results))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "fast_path", OutcomeFastPath.String())
	assert.Equal(t, "misaligned", OutcomeMisaligned.String())
	assert.Equal(t, "provider_failed", OutcomeProviderFailed.String())
	assert.Equal(t, "skipped", OutcomeSkipped.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

func texts(fragments []Fragment) []string {
	out := make([]string, len(fragments))
	for i, f := range fragments {
		out[i] = f.Text
	}
	return out
}
