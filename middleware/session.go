package middleware

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	SessionCookieName = "session_id"
	DefaultTimeout    = 24 * time.Hour

	sessionKey = "sessionID"
)

type Session struct {
	ID        string
	CreatedAt time.Time
	LastSeen  time.Time
}

// SessionManager 基于 Cookie 的会话管理
type SessionManager struct {
	sessions map[string]*Session
	timeout  time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

// NewSessionManager 创建会话管理器，timeout <= 0 时使用 24 小时
func NewSessionManager(timeout time.Duration) *SessionManager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		now:      time.Now,
	}
}

// generateSessionID 生成随机会话 ID
func generateSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		h := sha256.New()
		h.Write([]byte(time.Now().String()))
		h.Write([]byte(os.Getenv("HOSTNAME")))
		// 添加进程ID增加随机性
		h.Write([]byte(fmt.Sprintf("%d", os.Getpid())))
		return hex.EncodeToString(h.Sum(nil))
	}
	return hex.EncodeToString(b)
}

// GetOrCreateSession 获取或创建会话
func (sm *SessionManager) GetOrCreateSession(sessionID string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	if sessionID != "" {
		if session, exists := sm.sessions[sessionID]; exists {
			if now.Sub(session.LastSeen) < sm.timeout {
				session.LastSeen = now
				return session
			}
			// 会话过期，删除
			delete(sm.sessions, sessionID)
		}
	}

	newSession := &Session{
		ID:        generateSessionID(),
		CreatedAt: now,
		LastSeen:  now,
	}
	sm.sessions[newSession.ID] = newSession
	return newSession
}

// GetSession 获取会话（不创建新会话）
func (sm *SessionManager) GetSession(sessionID string) (*Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil, false
	}
	if sm.now().Sub(session.LastSeen) >= sm.timeout {
		delete(sm.sessions, sessionID)
		return nil, false
	}

	session.LastSeen = sm.now()
	return session, true
}

// DeleteSession 删除会话
func (sm *SessionManager) DeleteSession(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, sessionID)
}

// Len 当前会话数
func (sm *SessionManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CleanupExpired 删除过期会话，返回删除的 ID
func (sm *SessionManager) CleanupExpired() []string {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var removed []string
	now := sm.now()
	for id, session := range sm.sessions {
		if now.Sub(session.LastSeen) >= sm.timeout {
			delete(sm.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// RunCleanup 定期清理过期会话，直到 ctx 结束。onExpire 可用于清理会话数据
func (sm *SessionManager) RunCleanup(ctx context.Context, interval time.Duration, onExpire func(id string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range sm.CleanupExpired() {
				if onExpire != nil {
					onExpire(id)
				}
			}
		}
	}
}

// Middleware Gin 中间件：确保每个请求都有会话
func (sm *SessionManager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, _ := c.Cookie(SessionCookieName)

		session := sm.GetOrCreateSession(sessionID)

		// 新会话或会话 ID 变化时下发 Cookie
		if sessionID != session.ID {
			isSecure := c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"
			c.SetCookie(
				SessionCookieName,
				session.ID,
				int(sm.timeout.Seconds()),
				"/",
				"",
				isSecure,
				true, // httpOnly
			)
		}

		c.Set(sessionKey, session.ID)
		c.Next()
	}
}

// GetSessionID 从上下文获取会话 ID
func GetSessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
