package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cxdbclient "github.com/strongdm/ai-cxdb/clients/go"

	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc/sinks/cxdb"
)

// fakeCXDB records appended turns.
type fakeCXDB struct {
	mu      sync.Mutex
	appends int
	nextID  uint64
	closed  bool
}

func (f *fakeCXDB) CreateContext(ctx context.Context, baseTurnID uint64) (*cxdbclient.ContextHead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return &cxdbclient.ContextHead{ContextID: f.nextID}, nil
}

func (f *fakeCXDB) AppendTurn(ctx context.Context, req *cxdbclient.AppendRequest) (*cxdbclient.AppendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends++
	return &cxdbclient.AppendResult{ContextID: req.ContextID, TurnID: uint64(f.appends)}, nil
}

func (f *fakeCXDB) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func inline(name, src string) ScriptConfig {
	return ScriptConfig{Name: name, Source: src}
}

func TestRunPage_ReportsMainAndFrames(t *testing.T) {
	cfg := &Config{
		Page: PageConfig{
			Scripts: []ScriptConfig{
				inline("app.js", `function boot() { undefinedFn(); } boot();`),
			},
			Frames: []FrameConfig{
				{Name: "ads", Scripts: []ScriptConfig{inline("ads.js", `Promise.reject({slot: "top"})`)}},
				{Name: "chat", Scripts: []ScriptConfig{inline("chat.js", `setTimeout(function () { throw new TypeError("late") }, 5)`)}},
			},
		},
		Settle:   Duration(100 * time.Millisecond),
		Sinks:    SinksConfig{Stderr: StderrConfig{Verbose: true}},
		Metadata: map[string]string{"env": "test"},
	}

	var out bytes.Buffer
	res, err := runPage(context.Background(), cfg, runEnv{out: &out})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Captured)

	output := out.String()
	assert.Contains(t, output, "ReferenceError in main-")
	assert.Contains(t, output, "at boot (app.js")
	assert.Contains(t, output, "Unhandled Promise Rejection in ads-")
	assert.Contains(t, output, `Message: {"slot":"top"}`)
	assert.Contains(t, output, "TypeError in chat-")
}

func TestRunPage_CaptureDisabled(t *testing.T) {
	disabled := false
	cfg := &Config{
		CaptureExceptions: &disabled,
		Page:              PageConfig{Scripts: []ScriptConfig{inline("app.js", `throw new Error("x")`)}},
	}

	var out bytes.Buffer
	res, err := runPage(context.Background(), cfg, runEnv{out: &out})
	require.NoError(t, err)
	assert.Zero(t, res.Captured)
	assert.Empty(t, out.String())
}

func TestRunPage_ScrubsBeforeSinks(t *testing.T) {
	cfg := &Config{
		Page: PageConfig{Scripts: []ScriptConfig{
			inline("app.js", `throw new Error("login failed password=hunter2")`),
		}},
	}

	var out bytes.Buffer
	_, err := runPage(context.Background(), cfg, runEnv{out: &out})
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "hunter2")
	assert.Contains(t, out.String(), "[REDACTED]")
}

func TestRunPage_WritesToCXDB(t *testing.T) {
	fake := &fakeCXDB{}
	cfg := &Config{
		Page: PageConfig{Scripts: []ScriptConfig{inline("app.js", `throw new Error("x")`)}},
		Sinks: SinksConfig{
			Stderr: StderrConfig{Enabled: new(bool)},
			CXDB:   CXDBConfig{Addr: "cxdb.test:9009"},
			Async:  AsyncConfig{Enabled: true, QueueSize: 10},
		},
	}

	var gotAddr, gotTag string
	env := runEnv{
		out: io.Discard,
		dial: func(addr, tag string) (cxdb.Client, io.Closer, error) {
			gotAddr, gotTag = addr, tag
			return fake, fake, nil
		},
	}

	res, err := runPage(context.Background(), cfg, env)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Captured)
	assert.Equal(t, "cxdb.test:9009", gotAddr)
	assert.Equal(t, "jsexc-run", gotTag)
	assert.Equal(t, 1, fake.appends, "async sink drains on close")
	assert.True(t, fake.closed)
}

func TestRunPage_DialError(t *testing.T) {
	cfg := &Config{Sinks: SinksConfig{CXDB: CXDBConfig{Addr: "cxdb.test:9009"}}}
	env := runEnv{
		out: io.Discard,
		dial: func(string, string) (cxdb.Client, io.Closer, error) {
			return nil, nil, errors.New("connection refused")
		},
	}

	_, err := runPage(context.Background(), cfg, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to cxdb")
}

func TestRunPage_MissingScript(t *testing.T) {
	cfg := &Config{Page: PageConfig{Scripts: []ScriptConfig{{Path: "/does/not/exist.js"}}}}

	_, err := runPage(context.Background(), cfg, runEnv{out: io.Discard})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "main: read script"), err.Error())
}

func TestRunPage_ServesMetrics(t *testing.T) {
	cfg := &Config{
		Page:  PageConfig{Scripts: []ScriptConfig{inline("app.js", `throw new Error("x")`)}},
		Sinks: SinksConfig{Metrics: MetricsConfig{Addr: "127.0.0.1:0"}},
	}

	res, err := runPage(context.Background(), cfg, runEnv{out: io.Discard})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Captured)
}
