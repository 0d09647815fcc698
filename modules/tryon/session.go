package tryon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"styleswap-server/modules/common/gemini"
	"styleswap-server/modules/common/model"
)

// SessionConfig - 세션 생성 시 주입되는 의존성
type SessionConfig struct {
	Composer       gemini.ImageComposer
	StatusMessages []string
	TickInterval   time.Duration
	RequestTimeout time.Duration
}

// Session - 한 사용자의 try-on 화면 상태
type Session struct {
	id             string
	composer       gemini.ImageComposer
	ticker         *StatusTicker
	requestTimeout time.Duration

	mutex        sync.Mutex
	body         *model.UploadedImage
	outfit       *model.UploadedImage
	result       model.GeneratedResult
	status       model.ProcessingStatus
	errorMessage string
	prompt       string
	stopTicker   func()
	generation   uint64
	createdAt    time.Time
	lastActivity time.Time

	// ticker 콜백은 mutex 를 잡지 않는다
	statusMessage atomic.Pointer[string]
	closed        atomic.Bool

	subMutex    sync.Mutex
	subscribers map[int]chan Event
	nextSubID   int
}

func NewSession(id string, cfg SessionConfig) *Session {
	messages := cfg.StatusMessages
	if messages == nil {
		messages = DefaultStatusMessages
	}
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	now := time.Now()
	return &Session{
		id:             id,
		composer:       cfg.Composer,
		ticker:         NewStatusTicker(messages, interval),
		requestTimeout: cfg.RequestTimeout,
		status:         model.StatusIdle,
		createdAt:      now,
		lastActivity:   now,
		subscribers:    make(map[int]chan Event),
	}
}

func (s *Session) ID() string {
	return s.id
}

// SetImage - 슬롯 이미지 교체 (이전 preview 는 폐기)
func (s *Session) SetImage(slot Slot, img model.UploadedImage) (Snapshot, error) {
	if _, err := ParseSlot(string(slot)); err != nil {
		return s.Snapshot(), err
	}

	s.mutex.Lock()
	stored := img
	switch slot {
	case SlotBody:
		s.body = &stored
	case SlotOutfit:
		s.outfit = &stored
	}
	s.touchLocked()
	snap := s.snapshotLocked()
	s.mutex.Unlock()

	log.Printf("🖼️  [TryOn] Session %s: %s image set (%s, %d bytes)", s.id, slot, img.MediaType, img.Size)
	s.publishState(snap)
	return snap, nil
}

// ClearImage - 슬롯 비우기
func (s *Session) ClearImage(slot Slot) (Snapshot, error) {
	if _, err := ParseSlot(string(slot)); err != nil {
		return s.Snapshot(), err
	}

	s.mutex.Lock()
	switch slot {
	case SlotBody:
		s.body = nil
	case SlotOutfit:
		s.outfit = nil
	}
	s.touchLocked()
	snap := s.snapshotLocked()
	s.mutex.Unlock()

	s.publishState(snap)
	return snap, nil
}

// SetPrompt - 편집 프롬프트 입력 (상태 변화 없음)
func (s *Session) SetPrompt(prompt string) Snapshot {
	s.mutex.Lock()
	s.prompt = prompt
	s.touchLocked()
	snap := s.snapshotLocked()
	s.mutex.Unlock()
	return snap
}

// SubmitTryOn - 인물 + 의상 합성 요청
func (s *Session) SubmitTryOn(ctx context.Context) (Snapshot, error) {
	s.mutex.Lock()
	if s.status == model.StatusProcessing {
		snap := s.snapshotLocked()
		s.mutex.Unlock()
		return snap, ErrBusy
	}

	if s.body.IsZero() || s.outfit.IsZero() {
		s.errorMessage = ValidationMessage
		s.touchLocked()
		snap := s.snapshotLocked()
		s.mutex.Unlock()

		log.Printf("⚠️  [TryOn] Session %s: submit without both images", s.id)
		s.publishState(snap)
		return snap, &ValidationError{Message: ValidationMessage}
	}

	body, outfit := *s.body, *s.outfit
	gen := s.beginProcessingLocked()
	snap := s.snapshotLocked()
	s.mutex.Unlock()

	log.Printf("🎨 [TryOn] Session %s: try-on started", s.id)
	s.publishState(snap)

	callCtx, cancel := s.callContext(ctx)
	result, err := s.composer.Compose(callCtx, body, outfit)
	cancel()

	return s.finish(gen, "try-on", result, err)
}

// SubmitEdit - 현재 결과를 프롬프트로 수정.
// 결과가 없거나 프롬프트가 비어 있으면 아무 것도 하지 않는다.
func (s *Session) SubmitEdit(ctx context.Context) (Snapshot, error) {
	s.mutex.Lock()
	if s.status == model.StatusProcessing {
		snap := s.snapshotLocked()
		s.mutex.Unlock()
		return snap, ErrBusy
	}

	instruction := strings.TrimSpace(s.prompt)
	if s.result.IsEmpty() || instruction == "" {
		snap := s.snapshotLocked()
		s.mutex.Unlock()
		return snap, nil
	}

	base := s.result.String()
	gen := s.beginProcessingLocked()
	snap := s.snapshotLocked()
	s.mutex.Unlock()

	log.Printf("✏️  [TryOn] Session %s: edit started (%s)", s.id, truncate(instruction, 80))
	s.publishState(snap)

	callCtx, cancel := s.callContext(ctx)
	result, err := s.composer.Refine(callCtx, base, instruction)
	cancel()

	return s.finish(gen, "edit", result, err)
}

// Reset - 모든 입력/결과/에러 초기화
func (s *Session) Reset() Snapshot {
	s.mutex.Lock()
	s.stopTickerLocked()
	s.generation++
	s.body = nil
	s.outfit = nil
	s.result = ""
	s.status = model.StatusIdle
	s.errorMessage = ""
	s.prompt = ""
	s.statusMessage.Store(nil)
	s.touchLocked()
	snap := s.snapshotLocked()
	s.mutex.Unlock()

	log.Printf("🔄 [TryOn] Session %s reset", s.id)
	s.publishState(snap)
	return snap
}

func (s *Session) Snapshot() Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.snapshotLocked()
}

// Preview - preview 핸들로 업로드 이미지 조회
func (s *Session) Preview(ref string) (model.UploadedImage, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, img := range []*model.UploadedImage{s.body, s.outfit} {
		if !img.IsZero() && img.PreviewReference == ref {
			return *img, nil
		}
	}
	return model.UploadedImage{}, ErrNoSuchPreview
}

func (s *Session) Result() (model.GeneratedResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.result.IsEmpty() {
		return "", ErrNoResult
	}
	return s.result, nil
}

func (s *Session) Status() model.ProcessingStatus {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.status
}

func (s *Session) LastActivity() time.Time {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.lastActivity
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Subscribe - 상태 이벤트 구독. 반환된 함수로 해제.
func (s *Session) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	s.subMutex.Lock()
	if s.closed.Load() {
		s.subMutex.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMutex.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMutex.Lock()
			if existing, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(existing)
			}
			s.subMutex.Unlock()
		})
	}
}

func (s *Session) SubscriberCount() int {
	s.subMutex.Lock()
	defer s.subMutex.Unlock()
	return len(s.subscribers)
}

// Close - 세션 폐기 (ticker 정지, 구독 채널 닫기)
func (s *Session) Close() {
	s.mutex.Lock()
	s.stopTickerLocked()
	s.generation++
	s.mutex.Unlock()

	s.closed.Store(true)

	s.subMutex.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subMutex.Unlock()
}

func (s *Session) beginProcessingLocked() uint64 {
	s.stopTickerLocked()
	s.generation++
	gen := s.generation

	s.status = model.StatusProcessing
	s.errorMessage = ""
	s.touchLocked()

	s.stopTicker = s.ticker.Start(context.Background(), func(msg string) {
		s.onStatusTick(msg)
	})
	return gen
}

func (s *Session) stopTickerLocked() {
	if s.stopTicker != nil {
		s.stopTicker()
		s.stopTicker = nil
	}
}

func (s *Session) onStatusTick(msg string) {
	s.statusMessage.Store(&msg)
	s.publish(Event{
		Type:          EventStatusMessage,
		SessionID:     s.id,
		Status:        model.StatusProcessing,
		StatusMessage: msg,
	})
}

func (s *Session) finish(gen uint64, op string, result string, callErr error) (Snapshot, error) {
	s.mutex.Lock()
	if gen != s.generation {
		snap := s.snapshotLocked()
		s.mutex.Unlock()
		log.Printf("🗑️  [TryOn] Session %s: discarding %s completion after reset", s.id, op)
		return snap, ErrSuperseded
	}

	s.stopTickerLocked()
	s.statusMessage.Store(nil)

	var retErr error
	if callErr == nil {
		s.result = model.GeneratedResult(result)
		s.status = model.StatusSuccess
		s.errorMessage = ""
		if op == "edit" {
			s.prompt = ""
		}
		log.Printf("✅ [TryOn] Session %s: %s completed", s.id, op)
	} else {
		s.status = model.StatusError
		s.errorMessage = userMessageFor(op, callErr)
		retErr = fmt.Errorf("%s: %w", op, callErr)
		log.Printf("❌ [TryOn] Session %s: %s failed: %v", s.id, op, callErr)
	}
	s.touchLocked()
	snap := s.snapshotLocked()
	s.mutex.Unlock()

	s.publishState(snap)
	return snap, retErr
}

// userMessageFor - 실패 원인별 사용자 메시지
func userMessageFor(op string, err error) string {
	if op == "edit" {
		return EditErrorMessage
	}
	var genErr *gemini.GenerationFailedError
	if errors.As(err, &genErr) && genErr.UserMessage != "" {
		return genErr.UserMessage
	}
	return GenericErrorMessage
}

// callContext - 클라이언트 연결이 끊겨도 진행 중인 생성은 계속된다
func (s *Session) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if s.requestTimeout > 0 {
		return context.WithTimeout(base, s.requestTimeout)
	}
	return context.WithCancel(base)
}

func (s *Session) touchLocked() {
	s.lastActivity = time.Now()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:    s.id,
		Status:       s.status,
		ErrorMessage: s.errorMessage,
		Body:         s.imageViewLocked(s.body),
		Outfit:       s.imageViewLocked(s.outfit),
		ResultImage:  s.result.String(),
		Prompt:       s.prompt,
		UpdatedAt:    s.lastActivity,
	}
	if !s.result.IsEmpty() {
		snap.ResultURL = fmt.Sprintf("/api/tryon/sessions/%s/result", s.id)
	}
	if s.status == model.StatusProcessing {
		if msg := s.statusMessage.Load(); msg != nil {
			snap.StatusMessage = *msg
		}
	}
	return snap
}

func (s *Session) imageViewLocked(img *model.UploadedImage) *ImageView {
	if img.IsZero() {
		return nil
	}
	return &ImageView{
		MediaType:  img.MediaType,
		PreviewURL: fmt.Sprintf("/api/tryon/sessions/%s/previews/%s", s.id, img.PreviewReference),
		FileName:   img.FileName,
		Size:       img.Size,
		Width:      img.Width,
		Height:     img.Height,
	}
}

func (s *Session) publishState(snap Snapshot) {
	s.publish(Event{
		Type:          EventState,
		SessionID:     s.id,
		Status:        snap.Status,
		StatusMessage: snap.StatusMessage,
		Snapshot:      &snap,
	})
}

// publish - 느린 구독자는 이벤트를 놓친다 (블로킹 없음)
func (s *Session) publish(event Event) {
	s.subMutex.Lock()
	defer s.subMutex.Unlock()

	for id, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			log.Printf("⚠️  [TryOn] Session %s: subscriber %d is slow, dropping %s event", s.id, id, event.Type)
		}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
