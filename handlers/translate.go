package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pdf-translator/config"
	"pdf-translator/extract"
	"pdf-translator/logging"
	"pdf-translator/middleware"
	"pdf-translator/models"
	"pdf-translator/pipeline"
	"pdf-translator/translator"
	"pdf-translator/writer"
)

// TaskManager 管理所有用户的任务
type TaskManager struct {
	// sessionID -> taskID -> task
	userTasks map[string]map[string]*models.TranslateTask
	mu        sync.RWMutex
}

// NewTaskManager 创建任务管理器
func NewTaskManager() *TaskManager {
	return &TaskManager{
		userTasks: make(map[string]map[string]*models.TranslateTask),
	}
}

// AddTask 为用户添加任务
func (tm *TaskManager) AddTask(sessionID string, task *models.TranslateTask) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.userTasks[sessionID] == nil {
		tm.userTasks[sessionID] = make(map[string]*models.TranslateTask)
	}
	tm.userTasks[sessionID][task.ID] = task
}

// GetTask 获取用户的特定任务（返回副本）
func (tm *TaskManager) GetTask(sessionID, taskID string) (*models.TranslateTask, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	if userTasks, exists := tm.userTasks[sessionID]; exists {
		if task, found := userTasks[taskID]; found {
			cp := *task
			return &cp, true
		}
	}
	return nil, false
}

// GetUserTasks 获取用户的所有任务，按创建时间倒序
func (tm *TaskManager) GetUserTasks(sessionID string) []*models.TranslateTask {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	userTasks, exists := tm.userTasks[sessionID]
	if !exists {
		return []*models.TranslateTask{}
	}

	tasks := make([]*models.TranslateTask, 0, len(userTasks))
	for _, task := range userTasks {
		cp := *task
		tasks = append(tasks, &cp)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks
}

// UpdateTask 更新任务（用于更新进度等）
func (tm *TaskManager) UpdateTask(sessionID, taskID string, updateFn func(*models.TranslateTask)) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if userTasks, exists := tm.userTasks[sessionID]; exists {
		if task, found := userTasks[taskID]; found {
			updateFn(task)
		}
	}
}

// RemoveSession 删除会话的全部任务
func (tm *TaskManager) RemoveSession(sessionID string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	delete(tm.userTasks, sessionID)
}

// ClientFactory 按提供商配置创建翻译客户端
type ClientFactory func(ctx context.Context, pc translator.ProviderConfig, cache *translator.Cache, prompt string) (pipeline.Translator, error)

// DefaultClientFactory 使用配置中的重试与超时参数
func DefaultClientFactory(cfg *config.Config, log *logging.Logger) ClientFactory {
	return func(ctx context.Context, pc translator.ProviderConfig, cache *translator.Cache, prompt string) (pipeline.Translator, error) {
		return cfg.NewClient(ctx, pc, cache, prompt, log)
	}
}

// Handler 翻译相关的 HTTP 接口
type Handler struct {
	cfg       *config.Config
	log       *logging.Logger
	tasks     *TaskManager
	extractor translator.DocumentExtractor
	newClient ClientFactory
	writer    *writer.Writer

	ctx context.Context
	wg  sync.WaitGroup
}

// NewHandler 创建处理器。ctx 结束后未开始的批次不再翻译。
func NewHandler(ctx context.Context, cfg *config.Config, log *logging.Logger, extractor translator.DocumentExtractor, newClient ClientFactory) *Handler {
	if log == nil {
		log = logging.Discard()
	}
	if newClient == nil {
		newClient = DefaultClientFactory(cfg, log)
	}
	return &Handler{
		cfg:       cfg,
		log:       log,
		tasks:     NewTaskManager(),
		extractor: extractor,
		newClient: newClient,
		writer:    writer.New(writer.Options{FontPath: cfg.Output.FontPath}),
		ctx:       ctx,
	}
}

// Register 注册路由
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/translate", h.Translate)
	r.GET("/status/:taskId", h.GetStatus)
	r.GET("/download/:taskId", h.Download)
	r.GET("/preview/:taskId", h.Preview)
	r.GET("/tasks", h.GetTasks)
	r.GET("/languages", h.Languages)
}

// Wait 等待所有后台任务结束
func (h *Handler) Wait() {
	h.wg.Wait()
}

// Tasks 任务管理器
func (h *Handler) Tasks() *TaskManager {
	return h.tasks
}

// RemoveSession 删除过期会话的任务和文件
func (h *Handler) RemoveSession(sessionID string) {
	h.tasks.RemoveSession(sessionID)
	if err := os.RemoveAll(h.userDir(sessionID)); err != nil {
		h.log.Warn("清理会话目录失败", map[string]interface{}{"session": shortID(sessionID), "error": err.Error()})
	}
}

func (h *Handler) userDir(sessionID string) string {
	return filepath.Join(h.cfg.Server.DataDir, "users", sessionID)
}

// requireSession 获取会话 ID，缺失时直接返回 401
func requireSession(c *gin.Context) (string, bool) {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的会话"})
		return "", false
	}
	return sessionID, true
}

// taskJob 解析后的翻译参数
type taskJob struct {
	sourceLang string
	targetLang string
	format     writer.Format
	provider   translator.ProviderConfig
	prompt     string
	force      bool
}

// Translate 处理翻译请求
func (h *Handler) Translate(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未找到上传文件"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "只支持 .pdf 文件"})
		return
	}
	if limit := h.cfg.Server.MaxUploadMB << 20; file.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("文件超过 %d MB 限制", h.cfg.Server.MaxUploadMB)})
		return
	}

	req := models.TranslateRequest{
		Direction:        c.PostForm("direction"),
		SourceLanguage:   c.PostForm("sourceLanguage"),
		TargetLanguage:   c.PostForm("targetLanguage"),
		Format:           c.PostForm("format"),
		UserPrompt:       c.PostForm("userPrompt"),
		ForceRetranslate: c.PostForm("forceRetranslate") == "true",
	}
	if s := c.PostForm("llmConfig"); s != "" {
		if err := json.Unmarshal([]byte(s), &req.Provider); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "LLM 配置格式错误: " + err.Error()})
			return
		}
	}

	job, err := h.resolve(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	taskID := uuid.New().String()
	task := &models.TranslateTask{
		ID:             taskID,
		SessionID:      sessionID,
		SourceFile:     file.Filename,
		SourceLanguage: job.sourceLang,
		TargetLanguage: job.targetLang,
		Provider:       string(job.provider.Type),
		Format:         string(job.format),
		Status:         models.StatusPending,
		CreatedAt:      time.Now(),
	}
	h.tasks.AddTask(sessionID, task)

	uploadDir := filepath.Join(h.userDir(sessionID), "uploads")
	sourcePath := filepath.Join(uploadDir, taskID+ext)
	err = os.MkdirAll(uploadDir, 0755)
	if err == nil {
		err = c.SaveUploadedFile(file, sourcePath)
	}
	if err != nil {
		h.tasks.UpdateTask(sessionID, taskID, func(t *models.TranslateTask) {
			t.Status = models.StatusFailed
			t.Error = "保存文件失败: " + err.Error()
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存文件失败: " + err.Error()})
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.process(sessionID, taskID, sourcePath, file.Filename, job)
	}()

	c.JSON(http.StatusOK, gin.H{
		"taskId":  taskID,
		"message": "翻译任务已创建",
	})
}

// resolve 合并请求参数与服务端默认配置
func (h *Handler) resolve(req models.TranslateRequest) (taskJob, error) {
	source, target := h.cfg.Pipeline.SourceLanguage, h.cfg.Pipeline.TargetLanguage
	if req.Direction != "" {
		d, ok := models.FindDirection(req.Direction)
		if !ok {
			return taskJob{}, fmt.Errorf("不支持的翻译方向: %s", req.Direction)
		}
		source, target = d.Source, d.Target
	}
	if req.SourceLanguage != "" {
		source = req.SourceLanguage
	}
	if req.TargetLanguage != "" {
		target = req.TargetLanguage
	}

	var err error
	if source, err = translator.NormalizeLanguage(source); err != nil {
		return taskJob{}, fmt.Errorf("源语言无效: %w", err)
	}
	if target, err = translator.NormalizeLanguage(target); err != nil {
		return taskJob{}, fmt.Errorf("目标语言无效: %w", err)
	}
	if target == translator.AutoDetect {
		return taskJob{}, errors.New("目标语言不能为 auto")
	}

	formatName := req.Format
	if formatName == "" {
		formatName = h.cfg.Output.Format
	}
	format, err := writer.ParseFormat(formatName)
	if err != nil {
		return taskJob{}, err
	}

	provider := mergeProvider(h.cfg.Provider, req.Provider)
	if !translator.IsSupported(provider.Type) {
		return taskJob{}, fmt.Errorf("%w: %s", translator.ErrUnsupportedProvider, provider.Type)
	}

	return taskJob{
		sourceLang: source,
		targetLang: target,
		format:     format,
		provider:   provider,
		prompt:     req.UserPrompt,
		force:      req.ForceRetranslate,
	}, nil
}

// mergeProvider 请求中的非空字段覆盖服务端配置；切换提供商时不沿用服务端的密钥和地址
func mergeProvider(base translator.ProviderConfig, s models.ProviderSettings) translator.ProviderConfig {
	out := base
	if s.Provider != "" && translator.ProviderType(s.Provider) != base.Type {
		out = translator.ProviderConfig{
			Type:        translator.ProviderType(s.Provider),
			Temperature: base.Temperature,
		}
	}
	if s.APIKey != "" {
		out.APIKey = s.APIKey
	}
	if s.APIURL != "" {
		out.APIURL = s.APIURL
	}
	if s.Model != "" {
		out.Model = s.Model
	}
	if s.Temperature != 0 {
		out.Temperature = s.Temperature
	}
	if s.MaxTokens != 0 {
		out.MaxTokens = s.MaxTokens
	}
	if s.Function != "" {
		out.Function = s.Function
	}
	if len(s.Extra) > 0 {
		out.Extra = s.Extra
	}
	return out
}

// process 后台处理翻译任务
func (h *Handler) process(sessionID, taskID, sourcePath, fileName string, job taskJob) {
	log := h.log.With(map[string]interface{}{"session": shortID(sessionID), "task": taskID})

	fail := func(msg string, err error) {
		h.tasks.UpdateTask(sessionID, taskID, func(t *models.TranslateTask) {
			t.Status = models.StatusFailed
			t.Error = msg + ": " + err.Error()
			t.CompletedAt = time.Now()
		})
		log.Error(msg, err)
	}

	defer func() {
		if r := recover(); r != nil {
			fail("翻译过程出错", fmt.Errorf("panic: %v", r))
		}
	}()

	h.tasks.UpdateTask(sessionID, taskID, func(t *models.TranslateTask) {
		t.Status = models.StatusProcessing
	})

	var cache *translator.Cache
	if h.cfg.Cache.Enabled {
		c, err := translator.NewCache(filepath.Join(h.userDir(sessionID), "cache"))
		if err != nil {
			log.Warn("创建翻译缓存失败，不使用缓存", map[string]interface{}{"error": err.Error()})
		} else {
			cache = c
			// 强制重新翻译：忽略现有缓存，但仍然写入
			if job.force {
				cache.DisableCache()
			}
		}
	}

	log.Info("创建翻译客户端", map[string]interface{}{
		"provider": string(job.provider.Type),
		"model":    job.provider.Model,
	})
	client, err := h.newClient(h.ctx, job.provider, cache, job.prompt)
	if err != nil {
		fail("创建翻译客户端失败", err)
		return
	}

	outputPath := filepath.Join(h.userDir(sessionID), "outputs", taskID+job.format.Extension())
	dt := translator.NewDocumentTranslator(client, h.extractor, h.writer, h.cfg.PipelineOptions(), log)

	res, err := dt.TranslateDocument(h.ctx, translator.Job{
		InputPath:  sourcePath,
		OutputPath: outputPath,
		FileName:   fileName,
		SourceLang: job.sourceLang,
		TargetLang: job.targetLang,
		Format:     job.format,
		Provider:   string(job.provider.Type),
	}, func(p float64) {
		h.tasks.UpdateTask(sessionID, taskID, func(t *models.TranslateTask) {
			t.Progress = p
		})
	}, func(doc *extract.Document) {
		h.tasks.UpdateTask(sessionID, taskID, func(t *models.TranslateTask) {
			t.Title = doc.Title
			t.Pages = doc.Pages
		})
	})
	if err != nil {
		fail("翻译失败", err)
		return
	}

	report := res.Report
	stats := &models.TaskStats{
		Pages:      res.Document.Pages,
		Fragments:  len(res.Document.Fragments),
		Batches:    report.Batches(),
		Fallbacks:  report.Fallbacks(),
		Failures:   len(report.Failures()),
		Skipped:    report.Count(pipeline.OutcomeSkipped),
		Calls:      report.Calls(),
		DurationMs: res.Duration.Milliseconds(),
	}

	h.tasks.UpdateTask(sessionID, taskID, func(t *models.TranslateTask) {
		t.Status = models.StatusCompleted
		t.Progress = 1.0
		t.CompletedAt = time.Now()
		t.OutputPath = outputPath
		t.Stats = stats
		t.Original = res.Document.Fragments
		t.Translated = res.Translated
	})

	log.Info("翻译完成", map[string]interface{}{
		"output":    outputPath,
		"batches":   stats.Batches,
		"fallbacks": stats.Fallbacks,
		"failures":  stats.Failures,
	})
}

// GetStatus 获取任务状态
func (h *Handler) GetStatus(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	task, exists := h.tasks.GetTask(sessionID, c.Param("taskId"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在或无权访问"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// completedTask 获取已完成的任务，否则写出错误响应
func (h *Handler) completedTask(c *gin.Context) (*models.TranslateTask, bool) {
	sessionID, ok := requireSession(c)
	if !ok {
		return nil, false
	}

	task, exists := h.tasks.GetTask(sessionID, c.Param("taskId"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在或无权访问"})
		return nil, false
	}
	if task.Status != models.StatusCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "任务未完成"})
		return nil, false
	}
	return task, true
}

// Download 下载翻译结果；?format= 指定其他格式时重新生成
func (h *Handler) Download(c *gin.Context) {
	task, ok := h.completedTask(c)
	if !ok {
		return
	}

	format := writer.Format(task.Format)
	if q := c.Query("format"); q != "" {
		f, err := writer.ParseFormat(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		format = f
	}

	baseName := strings.TrimSuffix(task.SourceFile, filepath.Ext(task.SourceFile))
	filename := "translated_" + baseName + format.Extension()

	if format == writer.Format(task.Format) {
		c.FileAttachment(task.OutputPath, filename)
		return
	}

	var buf bytes.Buffer
	if err := h.writer.Write(&buf, format, taskMeta(task), task.Translated, task.Original); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成文件失败: " + err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// Preview 返回结构化的翻译结果，供前端直接展示
func (h *Handler) Preview(c *gin.Context) {
	task, ok := h.completedTask(c)
	if !ok {
		return
	}

	blocks := writer.Structure(task.Translated, task.Original)
	c.JSON(http.StatusOK, gin.H{
		"title":  taskMeta(task).Title,
		"blocks": blocks,
		"stats":  task.Stats,
	})
}

// GetTasks 获取当前用户的所有任务
func (h *Handler) GetTasks(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	taskList := h.tasks.GetUserTasks(sessionID)

	c.JSON(http.StatusOK, gin.H{
		"tasks": taskList,
		"total": len(taskList),
	})
}

// Languages 支持的翻译方向、提供商和输出格式
func (h *Handler) Languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"directions": models.Directions,
		"providers":  translator.SupportedProviders,
		"formats":    writer.Formats,
		"defaults": gin.H{
			"sourceLanguage": h.cfg.Pipeline.SourceLanguage,
			"targetLanguage": h.cfg.Pipeline.TargetLanguage,
			"format":         h.cfg.Output.Format,
			"provider":       h.cfg.Provider.Type,
		},
	})
}

func taskMeta(task *models.TranslateTask) writer.Meta {
	title := task.Title
	if title == "" {
		title = strings.TrimSuffix(task.SourceFile, filepath.Ext(task.SourceFile))
	}
	return writer.Meta{
		Title:      title,
		FileName:   task.SourceFile,
		SourceLang: task.SourceLanguage,
		TargetLang: task.TargetLanguage,
		Provider:   task.Provider,
		Pages:      task.Pages,
		CreatedAt:  task.CompletedAt,
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
