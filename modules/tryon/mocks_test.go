package tryon

import (
	"context"
	"sync"
	"time"

	"styleswap-server/modules/common/model"
	"styleswap-server/modules/common/utils"
)

// fakeComposer - gemini.ImageComposer 테스트 대역
type fakeComposer struct {
	mutex        sync.Mutex
	composeCalls int
	refineCalls  int
	lastBody     model.UploadedImage
	lastOutfit   model.UploadedImage
	lastBase     string
	lastPrompt   string

	composeFunc func(ctx context.Context) (string, error)
	refineFunc  func(ctx context.Context) (string, error)
}

func (f *fakeComposer) Compose(ctx context.Context, body, outfit model.UploadedImage) (string, error) {
	f.mutex.Lock()
	f.composeCalls++
	f.lastBody, f.lastOutfit = body, outfit
	fn := f.composeFunc
	f.mutex.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return utils.EncodeDataURI("image/png", []byte("X")), nil
}

func (f *fakeComposer) Refine(ctx context.Context, baseImage, instruction string) (string, error) {
	f.mutex.Lock()
	f.refineCalls++
	f.lastBase, f.lastPrompt = baseImage, instruction
	fn := f.refineFunc
	f.mutex.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return utils.EncodeDataURI("image/png", []byte("edited")), nil
}

func (f *fakeComposer) calls() (compose, refine int) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.composeCalls, f.refineCalls
}

// blockingCall - release 가 닫힐 때까지 대기하는 composeFunc
func blockingCall(started chan<- struct{}, release <-chan struct{}, result string, err error) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return result, err
	}
}

func testImage(mimeType string, data []byte) model.UploadedImage {
	return model.UploadedImage{
		EncodedData:      utils.EncodeDataURI(mimeType, data),
		MediaType:        mimeType,
		PreviewReference: string(data) + "-ref",
		Size:             len(data),
	}
}

func newTestSession(composer *fakeComposer) *Session {
	return NewSession("test-session", SessionConfig{
		Composer:       composer,
		TickInterval:   10 * time.Millisecond,
		RequestTimeout: time.Second,
	})
}

func waitForStatus(s *Session, want model.ProcessingStatus, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.Status() == want {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
