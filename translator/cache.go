package translator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// CacheKey 批次缓存键：合并后的批次文本和决定译文的全部参数
type CacheKey struct {
	Provider string `json:"provider"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Prompt   string `json:"prompt,omitempty"`
	Token    string `json:"token"` // 分隔符核心标记
	Text     string `json:"text"`
}

// Members 批次文本中的片段数
func (k CacheKey) Members() int {
	if k.Token == "" {
		return 1
	}
	return strings.Count(k.Text, k.Token) + 1
}

func (k CacheKey) hash() string {
	data, _ := json.Marshal(k)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// cacheEntry 磁盘上的缓存记录
type cacheEntry struct {
	Key         CacheKey  `json:"key"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Cache 批次级翻译缓存，每条记录一个 JSON 文件，按哈希前缀分目录
type Cache struct {
	dir      string
	mutex    sync.RWMutex
	disabled bool // 是否禁用读取（强制重新翻译）
}

// NewCache 创建缓存
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// DisableCache 禁用缓存读取，新结果仍会写入
func (c *Cache) DisableCache() {
	c.mutex.Lock()
	c.disabled = true
	c.mutex.Unlock()
}

// EnableCache 启用缓存
func (c *Cache) EnableCache() {
	c.mutex.Lock()
	c.disabled = false
	c.mutex.Unlock()
}

// Get 读取批次译文。记录的键与请求不一致时视为未命中。
func (c *Cache) Get(key CacheKey) (string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.disabled {
		return "", false
	}

	data, err := os.ReadFile(c.path(key.hash()))
	if err != nil {
		return "", false
	}

	var e cacheEntry
	if err := json.Unmarshal(data, &e); err != nil || e.Key != key {
		return "", false
	}
	return e.Translation, true
}

// Set 写入批次译文。分段数与批次成员数不符的译文不缓存，返回 false。
func (c *Cache) Set(key CacheKey, translation string) (bool, error) {
	if key.Token != "" && strings.Count(translation, key.Token)+1 != key.Members() {
		return false, nil
	}

	data, err := json.Marshal(cacheEntry{Key: key, Translation: translation, CreatedAt: time.Now()})
	if err != nil {
		return false, err
	}

	h := key.hash()
	path := c.path(h)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, err
	}
	return true, nil
}

// Len 缓存记录数
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	n := 0
	filepath.WalkDir(c.dir, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && filepath.Ext(d.Name()) == ".json" {
			n++
		}
		return nil
	})
	return n
}

func (c *Cache) path(h string) string {
	return filepath.Join(c.dir, h[:2], h+".json")
}
