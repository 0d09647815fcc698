package tryon

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"styleswap-server/modules/common/model"
)

// ServerMetrics - 서버 메트릭
type ServerMetrics struct {
	TotalSessions    int       `json:"totalSessions"`
	ActiveSessions   int       `json:"activeSessions"`
	TotalConnections int       `json:"totalConnections"`
	TryOnRequests    int       `json:"tryOnRequests"`
	EditRequests     int       `json:"editRequests"`
	FailedRequests   int       `json:"failedRequests"`
	StartTime        time.Time `json:"startTime"`
	mutex            sync.RWMutex
}

// SessionInfo - /metrics 에 노출되는 세션 요약
type SessionInfo struct {
	SessionID    string                 `json:"sessionId"`
	Status       model.ProcessingStatus `json:"status"`
	Subscribers  int                    `json:"subscribers"`
	CreatedAt    time.Time              `json:"createdAt"`
	LastActivity time.Time              `json:"lastActivity"`
	Age          string                 `json:"age"`
	Inactive     string                 `json:"inactive"`
}

// MetricsReport - /metrics 응답
type MetricsReport struct {
	Server   MetricsServer `json:"server"`
	Sessions []SessionInfo `json:"sessions"`
}

type MetricsServer struct {
	Uptime           string    `json:"uptime"`
	StartTime        time.Time `json:"startTime"`
	TotalSessions    int       `json:"totalSessions"`
	ActiveSessions   int       `json:"activeSessions"`
	TotalConnections int       `json:"totalConnections"`
	CurrentClients   int       `json:"currentClients"`
	TryOnRequests    int       `json:"tryOnRequests"`
	EditRequests     int       `json:"editRequests"`
	FailedRequests   int       `json:"failedRequests"`
}

// SessionManager - 세션 매니저
type SessionManager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
	metrics  *ServerMetrics
	config   SessionConfig
	idleTTL  time.Duration
}

func NewSessionManager(cfg SessionConfig, idleTTL time.Duration) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		metrics: &ServerMetrics{
			StartTime: time.Now(),
		},
		config:  cfg,
		idleTTL: idleTTL,
	}
}

// Create - 새 세션 생성
func (sm *SessionManager) Create() *Session {
	session := NewSession(uuid.NewString(), sm.config)

	sm.mutex.Lock()
	sm.sessions[session.ID()] = session
	sm.mutex.Unlock()

	sm.metrics.mutex.Lock()
	sm.metrics.TotalSessions++
	sm.metrics.ActiveSessions++
	total, active := sm.metrics.TotalSessions, sm.metrics.ActiveSessions
	sm.metrics.mutex.Unlock()

	log.Printf("✅ Created new session: %s (Total: %d, Active: %d)", session.ID(), total, active)
	return session
}

func (sm *SessionManager) Get(sessionId string) (*Session, bool) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	session, ok := sm.sessions[sessionId]
	return session, ok
}

// Delete - 세션 제거 (구독자 연결 종료)
func (sm *SessionManager) Delete(sessionId string) bool {
	sm.mutex.Lock()
	session, ok := sm.sessions[sessionId]
	if ok {
		delete(sm.sessions, sessionId)
	}
	sm.mutex.Unlock()

	if !ok {
		return false
	}

	session.Close()
	sm.metrics.mutex.Lock()
	sm.metrics.ActiveSessions--
	sm.metrics.mutex.Unlock()

	log.Printf("🧹 Deleted session: %s", sessionId)
	return true
}

func (sm *SessionManager) RecordConnection() {
	sm.metrics.mutex.Lock()
	sm.metrics.TotalConnections++
	sm.metrics.mutex.Unlock()
}

// RecordRequest - 생성 요청 카운트 (kind: "try-on" | "edit")
func (sm *SessionManager) RecordRequest(kind string, failed bool) {
	sm.metrics.mutex.Lock()
	defer sm.metrics.mutex.Unlock()

	switch kind {
	case "try-on":
		sm.metrics.TryOnRequests++
	case "edit":
		sm.metrics.EditRequests++
	}
	if failed {
		sm.metrics.FailedRequests++
	}
}

// CleanupExpiredSessions - idleTTL 이상 활동 없는 세션 정리 (processing 중인 세션 제외)
func (sm *SessionManager) CleanupExpiredSessions(now time.Time) int {
	if sm.idleTTL <= 0 {
		return 0
	}

	sm.mutex.Lock()
	expired := make([]*Session, 0)
	for sessionId, session := range sm.sessions {
		inactive := now.Sub(session.LastActivity())
		if inactive > sm.idleTTL && session.Status() != model.StatusProcessing {
			delete(sm.sessions, sessionId)
			expired = append(expired, session)
			log.Printf("⏰ Cleaned up inactive session: %s (Age: %v, Inactive: %v)",
				sessionId, now.Sub(session.CreatedAt()), inactive)
		}
	}
	sm.mutex.Unlock()

	for _, session := range expired {
		session.Close()
	}

	if len(expired) > 0 {
		sm.metrics.mutex.Lock()
		sm.metrics.ActiveSessions -= len(expired)
		active := sm.metrics.ActiveSessions
		sm.metrics.mutex.Unlock()
		log.Printf("🧼 Cleaned up %d inactive sessions (Active: %d)", len(expired), active)
	}
	return len(expired)
}

// StartCleanupRoutine - 정기적 정리 작업 시작 (ctx 종료 시 중단)
func (sm *SessionManager) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				sm.CleanupExpiredSessions(now)
			}
		}
	}()

	log.Printf("🔄 Started session cleanup routine (Every: %v, Idle TTL: %v)", interval, sm.idleTTL)
}

// Metrics - 서버/세션 메트릭 스냅샷
func (sm *SessionManager) Metrics() MetricsReport {
	sm.metrics.mutex.RLock()
	server := MetricsServer{
		Uptime:           time.Since(sm.metrics.StartTime).String(),
		StartTime:        sm.metrics.StartTime,
		TotalSessions:    sm.metrics.TotalSessions,
		ActiveSessions:   sm.metrics.ActiveSessions,
		TotalConnections: sm.metrics.TotalConnections,
		TryOnRequests:    sm.metrics.TryOnRequests,
		EditRequests:     sm.metrics.EditRequests,
		FailedRequests:   sm.metrics.FailedRequests,
	}
	sm.metrics.mutex.RUnlock()

	sm.mutex.RLock()
	sessions := make([]SessionInfo, 0, len(sm.sessions))
	for sessionId, session := range sm.sessions {
		subscribers := session.SubscriberCount()
		server.CurrentClients += subscribers

		lastActivity := session.LastActivity()
		sessions = append(sessions, SessionInfo{
			SessionID:    sessionId,
			Status:       session.Status(),
			Subscribers:  subscribers,
			CreatedAt:    session.CreatedAt(),
			LastActivity: lastActivity,
			Age:          time.Since(session.CreatedAt()).String(),
			Inactive:     time.Since(lastActivity).String(),
		})
	}
	sm.mutex.RUnlock()

	return MetricsReport{Server: server, Sessions: sessions}
}
