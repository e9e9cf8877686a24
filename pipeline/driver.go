package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pdf-translator/logging"
)

// Options 流水线参数
type Options struct {
	MaxChars  int
	Separator string
	Workers   int // 并发批次数，1 表示按顺序处理

	// Progress 进度回调（已完成批次比例），调用互斥且单调递增
	Progress func(float64)
}

// Result 一次文档翻译的结果
type Result struct {
	Fragments []Fragment
	Reports   []BatchReport
}

// Batches 批次数
func (r *Result) Batches() int { return len(r.Reports) }

// Count 统计某类结果的批次数
func (r *Result) Count(outcome Outcome) int {
	n := 0
	for _, rep := range r.Reports {
		if rep.Outcome == outcome {
			n++
		}
	}
	return n
}

// Fallbacks 走了逐条降级的批次数
func (r *Result) Fallbacks() int {
	n := 0
	for _, rep := range r.Reports {
		if rep.Fallback() {
			n++
		}
	}
	return n
}

// Failures 所有保留原文的失败片段
func (r *Result) Failures() []MemberFailure {
	var out []MemberFailure
	for _, rep := range r.Reports {
		out = append(out, rep.Failures...)
	}
	return out
}

// Calls 翻译调用总次数
func (r *Result) Calls() int {
	n := 0
	for _, rep := range r.Reports {
		n += rep.Calls
	}
	return n
}

// Driver 流水线驱动：切批 → 合并翻译 → 回填/降级
type Driver struct {
	client     Translator
	reconciler *Reconciler
	opts       Options
	log        *logging.Logger
}

// NewDriver 创建流水线驱动
func NewDriver(client Translator, opts Options, logger *logging.Logger) *Driver {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Driver{
		client:     client,
		reconciler: NewReconciler(client, opts.Separator, logger),
		opts:       opts,
		log:        logger,
	}
}

// TranslateAll 翻译全部片段，返回与输入等长、同序的结果。
//
// 任何批次或片段的失败都不会中断整篇文档；最坏情况下片段保留原文。
// ctx 取消后尚未开始的批次标记为 Skipped；已开始的请求不随之取消，由单次超时兜底。
func (d *Driver) TranslateAll(ctx context.Context, fragments []Fragment, sourceLang, targetLang string) *Result {
	start := time.Now()
	results := CloneFragments(fragments)
	batches := BuildBatches(fragments, d.opts.MaxChars, d.opts.Separator)
	reports := make([]BatchReport, len(batches))
	langs := Languages{Source: sourceLang, Target: targetLang}

	d.log.Info("开始分批翻译", map[string]interface{}{
		"fragments": len(fragments),
		"batches":   len(batches),
		"workers":   d.opts.Workers,
		"source":    sourceLang,
		"target":    targetLang,
	})

	callCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(d.opts.Workers)
	batchDone := d.progress(len(batches))

	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			reports[i] = skippedReport(i, b, err)
			continue
		}
		g.Go(func() error {
			// 排队期间可能已被取消
			if err := ctx.Err(); err != nil {
				reports[i] = skippedReport(i, b, err)
				return nil
			}
			reports[i] = d.runBatch(callCtx, i, b, fragments, results, langs)
			batchDone()
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{Fragments: results, Reports: reports}

	d.log.LogStatistics(map[string]interface{}{
		"batches":   result.Batches(),
		"fast_path": result.Count(OutcomeFastPath),
		"fallbacks": result.Fallbacks(),
		"skipped":   result.Count(OutcomeSkipped),
		"failures":  len(result.Failures()),
		"calls":     result.Calls(),
	})
	d.log.LogOperationTiming("translate_all", time.Since(start))

	return result
}

// runBatch 一次合并请求，无论成败都交给 Reconciler
func (d *Driver) runBatch(ctx context.Context, number int, batch Batch, original, results []Fragment, langs Languages) BatchReport {
	translated, err := d.client.Translate(ctx, batch.Text, langs.Source, langs.Target)

	report := d.reconciler.Reconcile(ctx, batch, translated, err, original, results, langs)
	report.Number = number
	report.Calls++

	d.log.Debug("批次完成", map[string]interface{}{
		"batch":    number,
		"members":  batch.Len(),
		"outcome":  report.Outcome.String(),
		"failures": len(report.Failures),
	})
	return report
}

// progress 返回批次完成时调用的函数；计数与回调在同一把锁内，进度不会倒退
func (d *Driver) progress(total int) func() {
	var (
		mu   sync.Mutex
		done int
	)
	return func() {
		if d.opts.Progress == nil || total == 0 {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		d.opts.Progress(float64(done) / float64(total))
	}
}

func skippedReport(number int, batch Batch, err error) BatchReport {
	return BatchReport{
		Number:  number,
		Indices: batch.Indices,
		Outcome: OutcomeSkipped,
		Err:     err,
	}
}
