package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
	"github.com/felixgeelhaar/gitpipe/internal/executor"
	"github.com/felixgeelhaar/gitpipe/internal/gitcmd"
	"github.com/felixgeelhaar/gitpipe/internal/progress"
)

var batchCmd = &cobra.Command{
	Use:   "batch <file.yaml>",
	Short: "Run command sequences in parallel, one chain per sequence",
	Long: `Run several sequences of git commands. Commands within a sequence run in
order on their own chain; sequences run in parallel, bounded by
max_concurrent_processes. Results are printed in file order.

File format:
  sequences:
    - name: app
      dir: ./app
      commands:
        - [fetch, --prune]
        - [status, --short]
    - name: lib
      dir: ./lib
      commands:
        - [log, -1, --oneline]

A failing command fails the rest of its sequence. With --fail-fast the first
failing sequence also cancels every other sequence.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

var (
	batchFailFast bool
	batchProgress bool
)

func init() {
	batchCmd.Flags().BoolVar(&batchFailFast, "fail-fast", false, "cancel all sequences when one fails")
	batchCmd.Flags().BoolVar(&batchProgress, "progress", false, "show finished sequences on stderr")

	rootCmd.AddCommand(batchCmd)
}

// BatchFile is the document read by the batch command.
type BatchFile struct {
	Sequences []Sequence `yaml:"sequences"`
}

// Sequence is an ordered list of git commands sharing one chain.
type Sequence struct {
	Name     string     `yaml:"name"`
	Dir      string     `yaml:"dir,omitempty"`
	Commands [][]string `yaml:"commands"`
}

// SequenceResult holds the outputs of the commands that resolved, in order,
// and the error that stopped the sequence.
type SequenceResult struct {
	Name    string
	Outputs []string
	Err     error
}

// LoadBatchFile reads and validates a batch file. Relative sequence
// directories are resolved against the file's directory.
func LoadBatchFile(path string) (*BatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigFileMissing, errors.KindConfiguration,
			fmt.Sprintf("failed to read batch file: %s", path), err)
	}

	var bf BatchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, errors.NewConfigFileError(path, "yaml", err)
	}
	if len(bf.Sequences) == 0 {
		return nil, errors.NewConfigurationError(fmt.Sprintf("batch file %s has no sequences", path))
	}

	base := filepath.Dir(path)
	for i := range bf.Sequences {
		seq := &bf.Sequences[i]
		if seq.Name == "" {
			seq.Name = fmt.Sprintf("sequence-%d", i+1)
		}
		if len(seq.Commands) == 0 {
			return nil, errors.NewConfigurationError(fmt.Sprintf("sequence %q has no commands", seq.Name))
		}
		if seq.Dir != "" && !filepath.IsAbs(seq.Dir) {
			seq.Dir = filepath.Join(base, seq.Dir)
		}
	}
	return &bf, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	bf, err := LoadBatchFile(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := newSession(cmd, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	var done func(SequenceResult)
	if batchProgress {
		bar := progress.NewBarIndicator(progress.Config{Writer: cmd.ErrOrStderr()}, len(bf.Sequences))
		defer bar.Finish()
		done = func(r SequenceResult) { bar.Increment(r.Err == nil) }
	}

	results := RunSequences(cmd.Context(), s.exec, bf.Sequences, batchFailFast, done)
	return printResults(cmd.OutOrStdout(), results)
}

// RunSequences runs every sequence on a chain forked from the executor's
// default chain. Results are returned in the order of seqs; done, if set, is
// called as each sequence finishes.
func RunSequences(ctx context.Context, exec *executor.Executor, seqs []Sequence, failFast bool, done func(SequenceResult)) []SequenceResult {
	results := make([]SequenceResult, len(seqs))
	g, gctx := errgroup.WithContext(ctx)
	if !failFast {
		gctx = ctx
	}

	root := exec.Chain()
	for i, seq := range seqs {
		dir := seq.Dir
		if dir == "" {
			dir = root.Dir()
		}
		g.Go(func() error {
			results[i] = runSequence(gctx, root.Fork(dir), seq)
			if done != nil {
				done(results[i])
			}
			if failFast {
				return results[i].Err
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runSequence(ctx context.Context, chain *executor.Chain, seq Sequence) SequenceResult {
	result := SequenceResult{Name: seq.Name}

	futures := make([]*executor.Future, 0, len(seq.Commands))
	if seq.Dir != "" {
		// surfaces a missing directory as a task error
		if _, err := executor.Await[string](ctx, chain.Push(ctx, gitcmd.Cwd(seq.Dir))); err != nil {
			result.Err = err
			return result
		}
	}
	for _, args := range seq.Commands {
		futures = append(futures, chain.Push(ctx, gitcmd.Raw(args...)))
	}

	for _, f := range futures {
		out, err := executor.Await[string](ctx, f)
		if err != nil {
			result.Err = err
			return result
		}
		result.Outputs = append(result.Outputs, out)
	}
	return result
}

func printResults(w io.Writer, results []SequenceResult) error {
	var failed []string
	for _, r := range results {
		fmt.Fprintln(w, headerStyle.Render("== "+r.Name+" =="))
		for _, out := range r.Outputs {
			if out != "" {
				fmt.Fprintln(w, out)
			}
		}
		if r.Err != nil {
			fmt.Fprintf(w, "%s %v\n", errorTitleStyle.Render("failed:"), r.Err)
			failed = append(failed, r.Name)
		}
	}

	if len(failed) > 0 {
		var first error
		for _, r := range results {
			if r.Err != nil {
				first = r.Err
				break
			}
		}
		return fmt.Errorf("%d of %d sequences failed (%s): %w", len(failed), len(results), strings.Join(failed, ", "), first)
	}
	return nil
}
