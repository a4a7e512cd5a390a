package gojart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc"
)

func TestPage_MainPatchedOnInstall(t *testing.T) {
	page, capture, _ := setup(t)

	assert.True(t, capture.Patched(page.Main()))
	assert.Equal(t, 1, page.Main().ListenerCount(jsexc.EventError))
	assert.Equal(t, 1, page.Main().ListenerCount(jsexc.EventUnhandledRejection))
}

func TestPage_FrameAttachedAfterInstall(t *testing.T) {
	page, capture, rec := setup(t)

	frame, err := page.AttachFrame("ads")
	require.NoError(t, err)
	assert.True(t, capture.Patched(frame))
	assert.Equal(t, "ads", frame.Name())

	run(t, frame, "ads.js", `throw new TypeError("no slot")`)
	run(t, page.Main(), "app.js", `Promise.reject(42)`)

	msgs := rec.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, frame.ID(), msgs[0].realmID)
	assert.Equal(t, "TypeError", msgs[0].msg.Name())
	assert.Equal(t, page.Main().ID(), msgs[1].realmID)
	assert.Equal(t, "42", msgs[1].msg.Message())
}

func TestPage_FramesRunConcurrently(t *testing.T) {
	page, _, rec := setup(t)

	a, err := page.AttachFrame("a")
	require.NoError(t, err)
	b, err := page.AttachFrame("b")
	require.NoError(t, err)

	done := make(chan error, 2)
	for _, f := range []*Realm{a, b} {
		go func(f *Realm) {
			done <- f.RunScript(context.Background(), f.Name()+".js", `
				throw new Error("one");
			`)
		}(f)
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	perRealm := map[string]int{}
	for _, m := range rec.messages() {
		perRealm[m.realmID]++
	}
	assert.Equal(t, map[string]int{a.ID(): 1, b.ID(): 1}, perRealm)
}

func TestPage_CaptureCloseStopsReporting(t *testing.T) {
	page, capture, rec := setup(t)
	frame, err := page.AttachFrame("widget")
	require.NoError(t, err)

	require.NoError(t, capture.Close())
	assert.Equal(t, 0, frame.ListenerCount(jsexc.EventError))
	assert.Equal(t, 0, page.Main().ListenerCount(jsexc.EventUnhandledRejection))

	run(t, frame, "widget.js", `throw new Error("after teardown")`)
	run(t, page.Main(), "app.js", `Promise.reject("after teardown")`)

	late, err := page.AttachFrame("late")
	require.NoError(t, err)
	run(t, late, "late.js", `throw new Error("late")`)

	assert.False(t, capture.Patched(late))
	assert.Empty(t, rec.messages())
}

func TestPage_DisabledCaptureIsInert(t *testing.T) {
	rec := &recorder{}
	page := NewPage()
	defer page.Close()

	capture := jsexc.NewCapture(rec, jsexc.WithCaptureExceptions(false))
	capture.Install(page)
	defer capture.Close()

	run(t, page.Main(), "app.js", `throw new Error("ignored")`)

	assert.False(t, capture.Patched(page.Main()))
	assert.Empty(t, rec.messages())
}

func TestPage_AttachFrameErrors(t *testing.T) {
	page := NewPage()

	_, err := page.AttachFrame("ads")
	require.NoError(t, err)

	_, err = page.AttachFrame("ads")
	assert.ErrorIs(t, err, ErrFrameExists)
	_, err = page.AttachFrame(MainRealmName)
	assert.ErrorIs(t, err, ErrFrameExists)

	require.NoError(t, page.Close())
	_, err = page.AttachFrame("after-close")
	assert.ErrorIs(t, err, ErrRealmClosed)
	assert.NoError(t, page.Close())
}

func TestPage_DetachFrame(t *testing.T) {
	page := NewPage()
	defer page.Close()

	frame, err := page.AttachFrame("ads")
	require.NoError(t, err)
	assert.Equal(t, []string{"ads"}, page.FrameNames())

	require.NoError(t, page.DetachFrame("ads"))
	_, ok := page.Frame("ads")
	assert.False(t, ok)
	assert.Empty(t, page.FrameNames())
	assert.ErrorIs(t, frame.RunScript(context.Background(), "ads.js", "1"), ErrRealmClosed)

	assert.ErrorIs(t, page.DetachFrame("ads"), ErrFrameNotFound)
}

func TestPage_RegistryListsAllRealms(t *testing.T) {
	page := NewPage()
	defer page.Close()

	frame, err := page.AttachFrame("ads")
	require.NoError(t, err)

	ids := []string{}
	for _, ec := range page.Contexts() {
		ids = append(ids, ec.ID())
	}
	assert.Equal(t, []string{page.Main().ID(), frame.ID()}, ids)
}
