package plugin

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/gitpipe/internal/task"
)

func testContext(commands ...string) Context {
	tk := task.Straight(commands...)
	return Context{Ctx: context.Background(), Task: tk, Commands: tk.Commands}
}

func TestPointString(t *testing.T) {
	assert.Equal(t, "spawn.binary", PointBinary.String())
	assert.Equal(t, "spawn.args", ArgsPlugin{}.Point().String())
	assert.Equal(t, "task.error", ErrorPlugin{}.Point().String())
	assert.Equal(t, "unknown", Point(42).String())
}

func TestArgsHooksApplyInOrder(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(ArgsPlugin{Resolve: func(args []string, _ Context) ([]string, error) {
		return append([]string{"-c", "a=1"}, args...), nil
	}})
	r.Add(ArgsPlugin{Resolve: func(args []string, _ Context) ([]string, error) {
		return append(args, "--verbose"), nil
	}})

	in := []string{"fetch"}
	out, err := r.Args(in, testContext("fetch"))
	require.NoError(t, err)

	assert.Equal(t, []string{"-c", "a=1", "fetch", "--verbose"}, out)
	assert.Equal(t, []string{"fetch"}, in)
}

func TestArgsHookErrorStopsPipeline(t *testing.T) {
	r := NewRegistry(nil)
	blocked := errors.New("blocked")
	called := false

	r.Add(ArgsPlugin{Resolve: func([]string, Context) ([]string, error) { return nil, blocked }})
	r.Add(ArgsPlugin{Resolve: func(args []string, _ Context) ([]string, error) {
		called = true
		return args, nil
	}})

	_, err := r.Args([]string{"push"}, testContext("push"))
	assert.ErrorIs(t, err, blocked)
	assert.False(t, called)
}

func TestBinaryResolution(t *testing.T) {
	r := NewRegistry(nil)

	bin, err := r.Binary("git", testContext("status"))
	require.NoError(t, err)
	assert.Equal(t, "git", bin)

	r.Add(BinaryPlugin{Resolve: func(string, Context) (string, error) { return "/opt/git/bin/git", nil }})
	bin, err = r.Binary("git", testContext("status"))
	require.NoError(t, err)
	assert.Equal(t, "/opt/git/bin/git", bin)

	r.Add(BinaryPlugin{Resolve: func(string, Context) (string, error) { return "", nil }})
	_, err = r.Binary("git", testContext("status"))
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	r := NewRegistry(nil)
	remove := r.Add(ArgsPlugin{Resolve: func(args []string, _ Context) ([]string, error) {
		return append(args, "x"), nil
	}})
	assert.Equal(t, 1, r.Count(PointArgs))

	remove()
	remove()

	out, err := r.Args([]string{"status"}, testContext("status"))
	require.NoError(t, err)
	assert.Equal(t, []string{"status"}, out)
	assert.Equal(t, 0, r.Len())
}

func TestAddAllRemovesEverything(t *testing.T) {
	r := NewRegistry(nil)
	remove := r.AddAll(
		BeforeSpawnPlugin{Action: func(*BeforeSpawnContext) {}},
		AfterSpawnPlugin{Action: func(*AfterSpawnContext) {}},
		nil,
	)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 1, r.Count(PointBeforeSpawn))

	remove()
	assert.Equal(t, 0, r.Len())
}

func TestSpawnOptionsAreCopied(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(SpawnOptionsPlugin{Resolve: func(o SpawnOptions, _ Context) SpawnOptions {
		o.Env["GIT_TERMINAL_PROMPT"] = "0"
		return o
	}})

	in := SpawnOptions{Dir: "/repo", Env: map[string]string{"HOME": "/home/dev"}}
	out := r.SpawnOptions(in, testContext("status"))

	assert.Equal(t, "0", out.Env["GIT_TERMINAL_PROMPT"])
	assert.NotContains(t, in.Env, "GIT_TERMINAL_PROMPT")
	assert.Equal(t, "/repo", out.Dir)
}

func TestBeforeSpawnKill(t *testing.T) {
	r := NewRegistry(nil)
	cancel := errors.New("cancelled")
	r.Add(BeforeSpawnPlugin{Action: func(c *BeforeSpawnContext) { c.Kill(cancel) }})

	var got error
	c := NewBeforeSpawnContext(testContext("clone"), SpawnOptions{}, func(err error) { got = err })
	r.BeforeSpawn(c)

	assert.Same(t, cancel, got)
}

func TestTaskErrorChain(t *testing.T) {
	r := NewRegistry(nil)
	first := errors.New("first")

	r.Add(ErrorPlugin{Classify: func(err error, c ErrorContext) error {
		if c.Result.ExitCode != 0 {
			return first
		}
		return err
	}})
	r.Add(ErrorPlugin{Classify: func(err error, _ ErrorContext) error {
		if errors.Is(err, first) {
			return nil
		}
		return err
	}})

	c := ErrorContext{Context: testContext("status"), Result: &task.ExecResult{ExitCode: 1}}
	assert.NoError(t, r.TaskError(nil, c))
}

func TestHookMayRegisterDuringInvocation(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(BeforeSpawnPlugin{Action: func(*BeforeSpawnContext) {
		r.Add(BeforeSpawnPlugin{})
	}})

	r.BeforeSpawn(NewBeforeSpawnContext(testContext("status"), SpawnOptions{}, nil))
	assert.Equal(t, 2, r.Len())
}

func TestConcurrentRegistration(t *testing.T) {
	r := NewRegistry(nil)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			remove := r.Add(ArgsPlugin{Resolve: func(args []string, _ Context) ([]string, error) { return args, nil }})
			_, _ = r.Args([]string{"status"}, testContext("status"))
			remove()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}

func TestContextMethod(t *testing.T) {
	assert.Equal(t, "clone", testContext("clone", "repo").Method())
	assert.Equal(t, "", Context{}.Method())
}

func TestSpawnOptionsClone(t *testing.T) {
	uid := uint32(1000)
	o := SpawnOptions{UID: &uid}
	c := o.Clone()
	*c.UID = 0

	assert.Equal(t, uint32(1000), *o.UID)
	assert.Nil(t, c.Env)
}
