package builtin

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/gitpipe/internal/plugin"
	"github.com/felixgeelhaar/gitpipe/internal/task"
)

type fakeProcess struct {
	mu       sync.Mutex
	onStdout []func([]byte)
	onStderr []func([]byte)
	exited   chan struct{}
	closed   chan struct{}
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{exited: make(chan struct{}), closed: make(chan struct{})}
}

func (p *fakeProcess) Pid() int { return 4242 }

func (p *fakeProcess) OnStdout(fn func([]byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onStdout = append(p.onStdout, fn)
}

func (p *fakeProcess) OnStderr(fn func([]byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onStderr = append(p.onStderr, fn)
}

func (p *fakeProcess) Exited() <-chan struct{} { return p.exited }
func (p *fakeProcess) Closed() <-chan struct{} { return p.closed }

func (p *fakeProcess) writeStdout(s string) {
	p.mu.Lock()
	subs := append([]func([]byte){}, p.onStdout...)
	p.mu.Unlock()
	for _, fn := range subs {
		fn([]byte(s))
	}
}

func (p *fakeProcess) writeStderr(s string) {
	p.mu.Lock()
	subs := append([]func([]byte){}, p.onStderr...)
	p.mu.Unlock()
	for _, fn := range subs {
		fn([]byte(s))
	}
}

func (p *fakeProcess) subscribers() (stdout, stderr int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.onStdout), len(p.onStderr)
}

// killRecorder collects the errors hooks kill with.
type killRecorder struct {
	mu    sync.Mutex
	kills []error
}

func (k *killRecorder) kill(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kills = append(k.kills, err)
}

func (k *killRecorder) get() []error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]error(nil), k.kills...)
}

func pluginContext(commands ...string) plugin.Context {
	tk := task.Straight(commands...)
	return plugin.Context{Ctx: context.Background(), Task: tk, Commands: tk.Commands}
}

// runArgs applies the args hooks of plugins to the context's commands.
func runArgs(plugins []plugin.Plugin, c plugin.Context) ([]string, error) {
	r := plugin.NewRegistry(nil)
	r.AddAll(plugins...)
	return r.Args(c.Commands, c)
}

func afterSpawn(plugins []plugin.Plugin, c plugin.Context, p plugin.Process, k *killRecorder) {
	r := plugin.NewRegistry(nil)
	r.AddAll(plugins...)
	r.AfterSpawn(plugin.NewAfterSpawnContext(c, p, k.kill))
}
