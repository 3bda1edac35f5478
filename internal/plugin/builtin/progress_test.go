package builtin

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/gitpipe/internal/plugin"
)

func TestProgressNil(t *testing.T) {
	assert.Nil(t, Progress(nil))
}

func TestProgressAddsFlag(t *testing.T) {
	plugins := Progress(func(ProgressEvent) {})

	tests := []struct {
		commands []string
		want     []string
	}{
		{[]string{"clone", "repo"}, []string{"clone", "repo", "--progress"}},
		{[]string{"fetch", "--progress"}, []string{"fetch", "--progress"}},
		{[]string{"status"}, []string{"status"}},
	}
	for _, tt := range tests {
		args, err := runArgs(plugins, pluginContext(tt.commands...))
		require.NoError(t, err)
		assert.Equal(t, tt.want, args)
	}
}

func TestProgressParsesStderr(t *testing.T) {
	var mu sync.Mutex
	var events []ProgressEvent
	plugins := Progress(func(e ProgressEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	p := newFakeProcess()
	c := pluginContext("fetch", "origin")
	c.Commands = []string{"fetch", "origin", "--progress"}
	afterSpawn(plugins, c, p, &killRecorder{})

	p.writeStderr("remote: Counting objects:  10% (1/10)\r")
	p.writeStderr("Receiving objects:  42% (21/50)\rReceiving objects: 100% (50/50), done.\n")
	p.writeStderr("From github.com:felixgeelhaar/gitpipe\n")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 3)
	assert.Equal(t, ProgressEvent{Method: "fetch", Stage: "remote", Progress: 10, Processed: 1, Total: 10}, events[0])
	assert.Equal(t, ProgressEvent{Method: "fetch", Stage: "receiving", Progress: 42, Processed: 21, Total: 50}, events[1])
	assert.Equal(t, 100, events[2].Progress)
}

func TestProgressJoinsSplitLines(t *testing.T) {
	var events []ProgressEvent
	plugins := Progress(func(e ProgressEvent) { events = append(events, e) })

	p := newFakeProcess()
	c := pluginContext("clone", "repo")
	c.Commands = []string{"clone", "repo", "--progress"}
	afterSpawn(plugins, c, p, &killRecorder{})

	p.writeStderr("Receiving obj")
	p.writeStderr("ects:  4")
	assert.Empty(t, events)

	p.writeStderr("2% (21/50)\rResolving deltas:  50% (1/")
	require.Len(t, events, 1)
	assert.Equal(t, ProgressEvent{Method: "clone", Stage: "receiving", Progress: 42, Processed: 21, Total: 50}, events[0])

	p.writeStderr("2)\n")
	require.Len(t, events, 2)
	assert.Equal(t, ProgressEvent{Method: "clone", Stage: "resolving", Progress: 50, Processed: 1, Total: 2}, events[1])
}

func TestProgressNeedsFlag(t *testing.T) {
	p := newFakeProcess()
	afterSpawn(Progress(func(ProgressEvent) {}), pluginContext("fetch"), p, &killRecorder{})

	_, stderr := p.subscribers()
	assert.Equal(t, 0, stderr)
}

func TestProgressStage(t *testing.T) {
	assert.Equal(t, "resolving", progressStage("Resolving deltas"))
	assert.Equal(t, "unknown", progressStage("  "))
}

var _ plugin.Process = (*fakeProcess)(nil)
