package coverage

import (
	"bufio"
	"context"
	"os/exec"
	"regexp"
	"sync"

	"github.com/rs/zerolog/log"
)

var methodLogLineRE = regexp.MustCompile(`(\w+)=(.*)`)

// MethodLogSource tails an external device log stream (e.g. `adb logcat`)
// for lines of the form "METHOD=<id>", deduplicates ids, and reports
// coverage as a percentage of a known total method count (spec.md §4.E
// "The method-log implementation").
type MethodLogSource struct {
	mu sync.Mutex

	tag          string
	totalMethods int
	visited      map[string]struct{}
}

// NewMethodLogSource creates a source that counts distinct methods logged
// under the given logcat tag, out of totalMethods.
func NewMethodLogSource(tag string, totalMethods int) *MethodLogSource {
	return &MethodLogSource{
		tag:          tag,
		totalMethods: totalMethods,
		visited:      make(map[string]struct{}),
	}
}

// StartListening launches a background reader over `adb logcat -s <tag>`,
// restarting the process if it exits, until ctx is cancelled (spec.md §4.E
// "method-hit log"). It mirrors the original's daemon thread: a
// long-running external collaborator the controller never blocks on.
func (s *MethodLogSource) StartListening(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := s.readOnce(ctx); err != nil {
				log.Warn().Err(err).Msg("logcat listener stopped, restarting")
			}
		}
	}()
}

func (s *MethodLogSource) readOnce(ctx context.Context) error {
	_ = exec.CommandContext(ctx, "adb", "logcat", "-c").Run()

	cmd := exec.CommandContext(ctx, "adb", "logcat", "-s", s.tag)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		s.analyzeLine(scanner.Text())
	}
	return cmd.Wait()
}

func (s *MethodLogSource) analyzeLine(line string) {
	m := methodLogLineRE.FindStringSubmatch(line)
	if m == nil || m[1] != "METHOD" {
		return
	}
	method := m[2]

	s.mu.Lock()
	defer s.mu.Unlock()
	key := "methods" + method
	if _, ok := s.visited[key]; ok {
		return
	}
	s.visited[key] = struct{}{}
}

func (s *MethodLogSource) visitedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visited)
}

// Coverage reports the percentage of distinct methods seen so far out of
// the configured total.
func (s *MethodLogSource) Coverage(ctx context.Context) (float64, error) {
	count := s.visitedCount()
	return (float64(count) / float64(s.totalMethods)) * 100, nil
}
