package coverage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const bytecodeSampleBudget = 1300 * time.Millisecond

// BytecodeComputer computes percentage coverage from an accumulated
// execution-data file and a class directory (e.g. a JaCoCo report builder).
// It is an out-of-scope external collaborator (spec.md §1); the core only
// consumes it through Source.
type BytecodeComputer interface {
	Compute(ecFilePath, classFilePath string) (float64, error)
}

// BytecodeSource wraps a BytecodeComputer with the fixed wall-clock budget
// spec.md §4.E describes: if computation doesn't return within 1.3s, the
// previous value is reused rather than blocking the controller.
type BytecodeSource struct {
	mu            sync.Mutex
	computer      BytecodeComputer
	ecFilePath    string
	classFilePath string
	last          float64
}

// NewBytecodeSource creates a source sampling computer against the given
// execution-data file and class directory.
func NewBytecodeSource(computer BytecodeComputer, ecFilePath, classFilePath string) *BytecodeSource {
	return &BytecodeSource{computer: computer, ecFilePath: ecFilePath, classFilePath: classFilePath}
}

// Coverage runs the computation with a 1.3s budget, falling back to the
// previous sample on timeout or error.
func (s *BytecodeSource) Coverage(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, bytecodeSampleBudget)
	defer cancel()

	result := make(chan float64, 1)
	errs := make(chan error, 1)
	go func() {
		v, err := s.computer.Compute(s.ecFilePath, s.classFilePath)
		if err != nil {
			errs <- err
			return
		}
		result <- v
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case v := <-result:
		s.last = v
		return v, nil
	case err := <-errs:
		log.Warn().Err(err).Msg("bytecode coverage computation failed, reusing last value")
		return s.last, nil
	case <-ctx.Done():
		log.Warn().Msg("bytecode coverage computation exceeded budget, reusing last value")
		return s.last, nil
	}
}
