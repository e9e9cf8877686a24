package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pdf-translator/logging"
)

// Alignment 拆分结果：对齐（带各段译文）或错位
type Alignment struct {
	aligned bool
	parts   []string
	got     int
}

// Aligned 段数与成员数一致
func Aligned(parts []string) Alignment {
	return Alignment{aligned: true, parts: parts, got: len(parts)}
}

// Misaligned 段数与成员数不一致
func Misaligned(got int) Alignment {
	return Alignment{got: got}
}

// IsAligned 是否对齐
func (a Alignment) IsAligned() bool { return a.aligned }

// Parts 对齐时的各段译文
func (a Alignment) Parts() []string { return a.parts }

// Got 实际拆出的段数
func (a Alignment) Got() int { return a.got }

// Split 按核心标记拆分合并译文并逐段 trim。
// 翻译服务常会吃掉分隔符两侧的空白，所以只按核心标记拆分。
func Split(translated, token string, want int) Alignment {
	raw := strings.Split(translated, token)
	if len(raw) != want {
		return Misaligned(len(raw))
	}
	parts := make([]string, len(raw))
	for i, p := range raw {
		parts[i] = strings.TrimSpace(p)
	}
	return Aligned(parts)
}

// Outcome 批次处理结果类型
type Outcome int

const (
	OutcomeFastPath       Outcome = iota // 拆分对齐，直接回填
	OutcomeMisaligned                    // 段数不符，逐条降级
	OutcomeProviderFailed                // 整批请求失败，逐条降级
	OutcomeSkipped                       // 已取消，未开始
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFastPath:
		return "fast_path"
	case OutcomeMisaligned:
		return "misaligned"
	case OutcomeProviderFailed:
		return "provider_failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// ErrBlankTranslation 逐条翻译返回空白译文
var ErrBlankTranslation = errors.New("译文为空")

// MemberFailure 单条降级翻译失败，该片段保留原文
type MemberFailure struct {
	Index int
	Err   error
}

func (f MemberFailure) Error() string {
	return fmt.Sprintf("片段 %d 翻译失败: %v", f.Index, f.Err)
}

func (f MemberFailure) Unwrap() error { return f.Err }

// BatchReport 单个批次的处理报告
type BatchReport struct {
	Number   int
	Indices  []int
	Outcome  Outcome
	Parts    int   // 拆分出的段数
	Calls    int   // 翻译调用次数（含整批请求）
	Err      error // 整批请求错误或取消原因
	Failures []MemberFailure
}

// Fallback 是否走了逐条降级
func (r BatchReport) Fallback() bool {
	return r.Outcome == OutcomeMisaligned || r.Outcome == OutcomeProviderFailed
}

// Reconciler 把批次译文拆回各片段，必要时逐条降级
type Reconciler struct {
	client Translator
	token  string
	log    *logging.Logger
}

// NewReconciler 创建回填器
func NewReconciler(client Translator, separator string, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reconciler{
		client: client,
		token:  CoreToken(separator),
		log:    logger,
	}
}

// Reconcile 处理一个批次的翻译结果，只写 results 中 batch.Indices 指定的位置。
// callErr 非空表示整批请求失败。
func (r *Reconciler) Reconcile(ctx context.Context, batch Batch, translated string, callErr error, original, results []Fragment, langs Languages) BatchReport {
	report := BatchReport{
		Indices: batch.Indices,
		Err:     callErr,
	}

	if callErr != nil {
		report.Outcome = OutcomeProviderFailed
		r.log.Warn("整批翻译失败，逐条降级", map[string]interface{}{
			"members": batch.Len(),
			"error":   callErr.Error(),
		})
		r.fallback(ctx, batch, original, results, langs, &report)
		return report
	}

	alignment := Split(translated, r.token, batch.Len())
	report.Parts = alignment.Got()

	if alignment.IsAligned() {
		report.Outcome = OutcomeFastPath
		for i, idx := range batch.Indices {
			part := alignment.Parts()[i]
			if part == "" {
				// 空白段保留原文
				report.Failures = append(report.Failures, MemberFailure{Index: idx, Err: ErrBlankTranslation})
				continue
			}
			results[idx].Text = part
		}
		return report
	}

	report.Outcome = OutcomeMisaligned
	r.log.Warn("译文分段数与批次成员数不符，逐条降级", map[string]interface{}{
		"members": batch.Len(),
		"parts":   alignment.Got(),
	})
	r.fallback(ctx, batch, original, results, langs, &report)
	return report
}

// fallback 逐条翻译，失败的片段保留原文
func (r *Reconciler) fallback(ctx context.Context, batch Batch, original, results []Fragment, langs Languages, report *BatchReport) {
	for _, idx := range batch.Indices {
		text := strings.TrimSpace(original[idx].Text)

		out, err := r.client.Translate(ctx, text, langs.Source, langs.Target)
		report.Calls++
		if err == nil && strings.TrimSpace(out) == "" {
			err = ErrBlankTranslation
		}
		if err != nil {
			failure := MemberFailure{Index: idx, Err: err}
			report.Failures = append(report.Failures, failure)
			r.log.Warn("逐条翻译失败，保留原文", map[string]interface{}{
				"index": idx,
				"text":  logging.Truncate(text, 50),
				"error": err.Error(),
			})
			continue
		}
		results[idx].Text = strings.TrimSpace(out)
	}
}
