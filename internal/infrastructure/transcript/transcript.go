// Package transcript implements llmagent.Transcript: an append-only
// prompt/response log plus a latency log, grounded on the LLM_QA.txt and
// LLM-Interaction.txt files the original policy wrote per run (spec.md §12).
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FileTranscript appends every prompt/response pair to LLM_QA.txt and every
// latency sample to LLM-Interaction.csv under outputDir.
type FileTranscript struct {
	mu sync.Mutex

	qaPath      string
	latencyPath string
}

// New creates a FileTranscript rooted at outputDir, writing an LLM_QA.txt header
// naming appName. outputDir is created if it does not already exist.
func New(outputDir, appName string) (*FileTranscript, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("transcript: create output dir: %w", err)
	}

	t := &FileTranscript{
		qaPath:      filepath.Join(outputDir, "LLM_QA.txt"),
		latencyPath: filepath.Join(outputDir, "LLM-Interaction.csv"),
	}

	header := fmt.Sprintf("app: %s\n%s\n", appName, strings.Repeat("=", 20))
	if err := os.WriteFile(t.qaPath, []byte(header), 0o644); err != nil {
		return nil, fmt.Errorf("transcript: write qa header: %w", err)
	}
	return t, nil
}

// LogPrompt appends a titled block (e.g. "Prompt" or "Response") to LLM_QA.txt.
func (t *FileTranscript) LogPrompt(title, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.qaPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Warn().Err(err).Msg("transcript: open qa log")
		return
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s:\n%s\n%s\n", title, content, strings.Repeat("-", 20)); err != nil {
		log.Warn().Err(err).Msg("transcript: write qa log")
	}
}

// LogLatency appends one "elapsed_seconds, response_length" row.
func (t *FileTranscript) LogLatency(d time.Duration, responseLen int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.latencyPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Warn().Err(err).Msg("transcript: open latency log")
		return
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%f, %d\n", d.Seconds(), responseLen); err != nil {
		log.Warn().Err(err).Msg("transcript: write latency log")
	}
}
