package tryon

import (
	"context"
	"sync"
	"time"
)

// StatusTicker - processing 동안 상태 문구를 일정 간격으로 순환
type StatusTicker struct {
	messages []string
	interval time.Duration
}

func NewStatusTicker(messages []string, interval time.Duration) *StatusTicker {
	return &StatusTicker{
		messages: append([]string(nil), messages...),
		interval: interval,
	}
}

// Start - 첫 문구는 즉시 전달, 이후 interval 마다 다음 문구.
// 반환된 stop 이 끝난 뒤에는 onTick 이 호출되지 않는다.
func (t *StatusTicker) Start(ctx context.Context, onTick func(string)) (stop func()) {
	if len(t.messages) == 0 || t.interval <= 0 {
		return func() {}
	}

	onTick(t.messages[0])

	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		idx := 0
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				// stop 과 tick 이 동시에 준비된 경우 stop 우선
				select {
				case <-done:
					return
				default:
				}
				idx = (idx + 1) % len(t.messages)
				onTick(t.messages[idx])
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-exited
		})
	}
}
