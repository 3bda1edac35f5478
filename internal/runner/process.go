package runner

import (
	"os"
	"sync"
)

const readBufferSize = 32 * 1024

// process implements plugin.Process for one spawned command and collects
// its output.
type process struct {
	pid int

	mu       sync.Mutex
	stdout   [][]byte
	stderr   [][]byte
	gotData  bool
	onStdout []func([]byte)
	onStderr []func([]byte)

	exitCode int
	exited   chan struct{}
	closed   chan struct{}
	drained  sync.WaitGroup
}

func newProcess(pid int) *process {
	return &process{
		pid:      pid,
		exitCode: -1,
		exited:   make(chan struct{}),
		closed:   make(chan struct{}),
	}
}

func (p *process) Pid() int { return p.pid }

func (p *process) OnStdout(fn func(chunk []byte)) {
	p.mu.Lock()
	p.onStdout = append(p.onStdout, fn)
	p.mu.Unlock()
}

func (p *process) OnStderr(fn func(chunk []byte)) {
	p.mu.Lock()
	p.onStderr = append(p.onStderr, fn)
	p.mu.Unlock()
}

func (p *process) Exited() <-chan struct{} { return p.exited }

func (p *process) Closed() <-chan struct{} { return p.closed }

// read drains r until EOF, a read error, or the runner closing r.
func (p *process) read(r *os.File, stderr bool) {
	defer p.drained.Done()
	defer r.Close()

	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.deliver(chunk, stderr)
		}
		if err != nil {
			return
		}
	}
}

func (p *process) deliver(chunk []byte, stderr bool) {
	p.mu.Lock()
	p.gotData = true
	var subscribers []func([]byte)
	if stderr {
		p.stderr = append(p.stderr, chunk)
		subscribers = append(subscribers, p.onStderr...)
	} else {
		p.stdout = append(p.stdout, chunk)
		subscribers = append(subscribers, p.onStdout...)
	}
	p.mu.Unlock()

	for _, fn := range subscribers {
		fn(chunk)
	}
}

func (p *process) hasData() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gotData
}

// snapshot copies what has been collected so far.
func (p *process) snapshot() (stdout, stderr [][]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.stdout...), append([][]byte(nil), p.stderr...)
}
