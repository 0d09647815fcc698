package tryon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"styleswap-server/modules/common/gemini"
	"styleswap-server/modules/common/model"
	"styleswap-server/modules/common/utils"
)

func readySession(t *testing.T, composer *fakeComposer) *Session {
	t.Helper()
	s := newTestSession(composer)
	_, err := s.SetImage(SlotBody, testImage("image/jpeg", []byte("body")))
	require.NoError(t, err)
	_, err = s.SetImage(SlotOutfit, testImage("image/png", []byte("outfit")))
	require.NoError(t, err)
	return s
}

func TestSession_InitialState(t *testing.T) {
	snap := newTestSession(&fakeComposer{}).Snapshot()

	assert.Equal(t, model.StatusIdle, snap.Status)
	assert.Empty(t, snap.ErrorMessage)
	assert.Empty(t, snap.ResultImage)
	assert.Nil(t, snap.Body)
	assert.Nil(t, snap.Outfit)
}

func TestSession_SubmitTryOnRequiresBothImages(t *testing.T) {
	composer := &fakeComposer{}
	s := newTestSession(composer)
	_, err := s.SetImage(SlotBody, testImage("image/jpeg", []byte("body")))
	require.NoError(t, err)

	snap, err := s.SubmitTryOn(context.Background())

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, ValidationMessage, snap.ErrorMessage)
	assert.Equal(t, model.StatusIdle, snap.Status, "validation does not change status")

	compose, _ := composer.calls()
	assert.Equal(t, 0, compose, "no network call without both images")
}

func TestSession_SubmitTryOnSuccess(t *testing.T) {
	composer := &fakeComposer{}
	s := readySession(t, composer)

	snap, err := s.SubmitTryOn(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.StatusSuccess, snap.Status)
	assert.Equal(t, "data:image/png;base64,"+utils.ConvertImageToBase64([]byte("X")), snap.ResultImage)
	assert.Equal(t, "/api/tryon/sessions/test-session/result", snap.ResultURL)
	assert.Empty(t, snap.ErrorMessage)
	assert.Empty(t, snap.StatusMessage)

	assert.Equal(t, []byte("body"), mustDecode(t, composer.lastBody.EncodedData))
	assert.Equal(t, []byte("outfit"), mustDecode(t, composer.lastOutfit.EncodedData))
}

func TestSession_SubmitTryOnClearsPreviousError(t *testing.T) {
	composer := &fakeComposer{}
	s := newTestSession(composer)

	snap, _ := s.SubmitTryOn(context.Background())
	require.NotEmpty(t, snap.ErrorMessage)

	_, err := s.SetImage(SlotBody, testImage("image/jpeg", []byte("body")))
	require.NoError(t, err)
	_, err = s.SetImage(SlotOutfit, testImage("image/png", []byte("outfit")))
	require.NoError(t, err)

	snap, err = s.SubmitTryOn(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.ErrorMessage)
}

func TestSession_SubmitTryOnFailureMessages(t *testing.T) {
	t.Run("generation failure shows its own message", func(t *testing.T) {
		composer := &fakeComposer{
			composeFunc: func(ctx context.Context) (string, error) {
				return "", &gemini.GenerationFailedError{UserMessage: gemini.TryOnFailedMessage}
			},
		}
		s := readySession(t, composer)

		snap, err := s.SubmitTryOn(context.Background())
		assert.ErrorIs(t, err, gemini.ErrGenerationFailed)
		assert.Equal(t, model.StatusError, snap.Status)
		assert.Equal(t, gemini.TryOnFailedMessage, snap.ErrorMessage)
	})

	t.Run("other errors show the generic message", func(t *testing.T) {
		composer := &fakeComposer{
			composeFunc: func(ctx context.Context) (string, error) {
				return "", errors.New("connection reset")
			},
		}
		s := readySession(t, composer)

		snap, err := s.SubmitTryOn(context.Background())
		assert.Error(t, err)
		assert.Equal(t, model.StatusError, snap.Status)
		assert.Equal(t, GenericErrorMessage, snap.ErrorMessage)
	})
}

func TestSession_BusyWhileProcessing(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	composer := &fakeComposer{
		composeFunc: blockingCall(started, release, utils.EncodeDataURI("image/png", []byte("X")), nil),
	}
	s := readySession(t, composer)

	done := make(chan error, 1)
	go func() {
		_, err := s.SubmitTryOn(context.Background())
		done <- err
	}()
	<-started

	snap := s.Snapshot()
	assert.Equal(t, model.StatusProcessing, snap.Status)
	assert.Contains(t, DefaultStatusMessages, snap.StatusMessage)

	_, err := s.SubmitTryOn(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = s.SubmitEdit(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)

	compose, _ := composer.calls()
	assert.Equal(t, 1, compose)
	assert.Equal(t, model.StatusSuccess, s.Status())
}

func TestSession_ResetDiscardsInFlightResult(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	composer := &fakeComposer{
		composeFunc: blockingCall(started, release, utils.EncodeDataURI("image/png", []byte("late")), nil),
	}
	s := readySession(t, composer)

	done := make(chan error, 1)
	go func() {
		_, err := s.SubmitTryOn(context.Background())
		done <- err
	}()
	<-started

	snap := s.Reset()
	assert.Equal(t, model.StatusIdle, snap.Status)

	close(release)
	assert.ErrorIs(t, <-done, ErrSuperseded)

	snap = s.Snapshot()
	assert.Equal(t, model.StatusIdle, snap.Status)
	assert.Empty(t, snap.ResultImage)
	assert.Nil(t, snap.Body)
	assert.Nil(t, snap.Outfit)
}

func TestSession_StatusMessagesRotateWhileProcessing(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	composer := &fakeComposer{
		composeFunc: blockingCall(started, release, utils.EncodeDataURI("image/png", []byte("X")), nil),
	}
	s := readySession(t, composer)

	events, unsubscribe := s.Subscribe(64)
	defer unsubscribe()

	done := make(chan error, 1)
	go func() {
		_, err := s.SubmitTryOn(context.Background())
		done <- err
	}()
	<-started

	var seen []string
	timeout := time.After(2 * time.Second)
	for len(seen) < 3 {
		select {
		case ev := <-events:
			if ev.Type == EventStatusMessage {
				seen = append(seen, ev.StatusMessage)
			}
		case <-timeout:
			t.Fatalf("only saw %d status messages", len(seen))
		}
	}
	assert.Equal(t, DefaultStatusMessages[:3], seen)

	close(release)
	require.NoError(t, <-done)
	assert.Empty(t, s.Snapshot().StatusMessage, "status message cleared once processing ends")
}

func TestSession_SubmitEdit(t *testing.T) {
	t.Run("no-op without result", func(t *testing.T) {
		composer := &fakeComposer{}
		s := newTestSession(composer)
		s.SetPrompt("make it red")

		snap, err := s.SubmitEdit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, model.StatusIdle, snap.Status)

		_, refine := composer.calls()
		assert.Equal(t, 0, refine)
	})

	t.Run("no-op with blank prompt", func(t *testing.T) {
		composer := &fakeComposer{}
		s := readySession(t, composer)
		_, err := s.SubmitTryOn(context.Background())
		require.NoError(t, err)

		s.SetPrompt("   ")
		snap, err := s.SubmitEdit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, model.StatusSuccess, snap.Status)

		_, refine := composer.calls()
		assert.Equal(t, 0, refine)
	})

	t.Run("replaces result and clears prompt", func(t *testing.T) {
		composer := &fakeComposer{}
		s := readySession(t, composer)
		first, err := s.SubmitTryOn(context.Background())
		require.NoError(t, err)

		s.SetPrompt("  add a red hat ")
		snap, err := s.SubmitEdit(context.Background())
		require.NoError(t, err)

		assert.Equal(t, model.StatusSuccess, snap.Status)
		assert.Equal(t, utils.EncodeDataURI("image/png", []byte("edited")), snap.ResultImage)
		assert.Empty(t, snap.Prompt)
		assert.Equal(t, first.ResultImage, composer.lastBase)
		assert.Equal(t, "add a red hat", composer.lastPrompt)
	})

	t.Run("failure uses fixed edit message and keeps prompt", func(t *testing.T) {
		composer := &fakeComposer{
			refineFunc: func(ctx context.Context) (string, error) {
				return "", &gemini.GenerationFailedError{UserMessage: gemini.EditFailedMessage}
			},
		}
		s := readySession(t, composer)
		first, err := s.SubmitTryOn(context.Background())
		require.NoError(t, err)

		s.SetPrompt("darker")
		snap, err := s.SubmitEdit(context.Background())
		assert.Error(t, err)

		assert.Equal(t, model.StatusError, snap.Status)
		assert.Equal(t, EditErrorMessage, snap.ErrorMessage)
		assert.Equal(t, "darker", snap.Prompt)
		assert.Equal(t, first.ResultImage, snap.ResultImage)
	})
}

func TestSession_ImagesAndPreviews(t *testing.T) {
	s := newTestSession(&fakeComposer{})

	body := testImage("image/jpeg", []byte("body"))
	snap, err := s.SetImage(SlotBody, body)
	require.NoError(t, err)
	require.NotNil(t, snap.Body)
	assert.Equal(t, "/api/tryon/sessions/test-session/previews/body-ref", snap.Body.PreviewURL)

	got, err := s.Preview("body-ref")
	require.NoError(t, err)
	assert.Equal(t, body, got)

	replacement := testImage("image/jpeg", []byte("body2"))
	_, err = s.SetImage(SlotBody, replacement)
	require.NoError(t, err)

	_, err = s.Preview("body-ref")
	assert.ErrorIs(t, err, ErrNoSuchPreview, "replaced preview is discarded")

	snap, err = s.ClearImage(SlotBody)
	require.NoError(t, err)
	assert.Nil(t, snap.Body)

	_, err = s.SetImage(Slot("hat"), body)
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestSession_ResetClearsEverything(t *testing.T) {
	s := readySession(t, &fakeComposer{})
	_, err := s.SubmitTryOn(context.Background())
	require.NoError(t, err)
	s.SetPrompt("something")

	snap := s.Reset()
	assert.Equal(t, model.StatusIdle, snap.Status)
	assert.Nil(t, snap.Body)
	assert.Nil(t, snap.Outfit)
	assert.Empty(t, snap.ResultImage)
	assert.Empty(t, snap.Prompt)
	assert.Empty(t, snap.ErrorMessage)

	_, err = s.Result()
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestSession_CloseEndsSubscriptions(t *testing.T) {
	s := newTestSession(&fakeComposer{})
	events, unsubscribe := s.Subscribe(1)

	s.Close()
	_, ok := <-events
	assert.False(t, ok)
	assert.NotPanics(t, unsubscribe)

	late, _ := s.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed session yields a closed channel")
}

func mustDecode(t *testing.T, uri string) []byte {
	t.Helper()
	_, data, err := utils.DecodeDataURI(uri)
	require.NoError(t, err)
	return data
}
