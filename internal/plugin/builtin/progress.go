package builtin

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/felixgeelhaar/gitpipe/internal/plugin"
)

const progressFlag = "--progress"

var (
	progressMethods = []string{"checkout", "clone", "fetch", "pull", "push"}
	progressLine    = regexp.MustCompile(`^([\s\S]+?):\s*(\d+)% \((\d+)/(\d+)\)`)
)

// ProgressEvent is one progress report parsed from git's stderr.
type ProgressEvent struct {
	Method    string `json:"method"`
	Stage     string `json:"stage"`
	Progress  int    `json:"progress"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

// Progress requests progress output from the commands that support it and
// reports every parsed progress line to fn.
func Progress(fn func(ProgressEvent)) []plugin.Plugin {
	if fn == nil {
		return nil
	}

	return []plugin.Plugin{
		plugin.ArgsPlugin{Resolve: func(args []string, c plugin.Context) ([]string, error) {
			if !slices.Contains(progressMethods, c.Method()) || slices.Contains(args, progressFlag) {
				return args, nil
			}
			return append(args, progressFlag), nil
		}},
		plugin.AfterSpawnPlugin{Action: func(c *plugin.AfterSpawnContext) {
			if !slices.Contains(c.Commands, progressFlag) {
				return
			}
			method := c.Method()
			var lines progressLines
			c.Process.OnStderr(func(chunk []byte) {
				for _, line := range lines.feed(chunk) {
					if event, ok := parseProgress(method, line); ok {
						fn(event)
					}
				}
			})
		}},
	}
}

// progressLines reassembles stderr chunks into lines. A line is only complete
// once its terminator arrived, which may be several reads later.
type progressLines struct {
	mu      sync.Mutex
	partial string
}

func (l *progressLines) feed(chunk []byte) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.partial + string(chunk)
	end := strings.LastIndexAny(s, "\r\n")
	if end < 0 {
		l.partial = s
		return nil
	}
	l.partial = s[end+1:]
	return splitProgress(s[:end])
}

// git rewrites progress lines in place with carriage returns.
func splitProgress(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == '\r' || r == '\n' })
}

func parseProgress(method, line string) (ProgressEvent, bool) {
	m := progressLine.FindStringSubmatch(line)
	if m == nil {
		return ProgressEvent{}, false
	}

	event := ProgressEvent{Method: method, Stage: progressStage(m[1])}
	event.Progress, _ = strconv.Atoi(m[2])
	event.Processed, _ = strconv.Atoi(m[3])
	event.Total, _ = strconv.Atoi(m[4])
	return event, true
}

func progressStage(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return "unknown"
	}
	return fields[0]
}
