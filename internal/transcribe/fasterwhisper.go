package transcribe

import (
	"bufio"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

//go:embed assets/faster_whisper.py
var helperScript embed.FS

// FasterWhisper runs transcription through a faster-whisper helper process.
// The helper holds the loaded model for the lifetime of one invocation and
// emits NDJSON on stdout: one info line, then one line per segment, so the
// caller consumes segments as the model produces them.
type FasterWhisper struct {
	pythonBin string
	modelSize string

	scriptOnce sync.Once
	scriptPath string
	scriptErr  error
}

// NewFasterWhisper builds a backend for one model size.
func NewFasterWhisper(pythonBin, modelSize string) *FasterWhisper {
	if pythonBin == "" {
		pythonBin = "python3"
	}
	return &FasterWhisper{pythonBin: pythonBin, modelSize: modelSize}
}

func (f *FasterWhisper) helperPath() (string, error) {
	f.scriptOnce.Do(func() {
		data, err := helperScript.ReadFile("assets/faster_whisper.py")
		if err != nil {
			f.scriptErr = fmt.Errorf("read helper script: %w", err)
			return
		}
		path := filepath.Join(os.TempDir(), "transcription_faster_whisper.py")
		if err := os.WriteFile(path, data, 0o755); err != nil {
			f.scriptErr = fmt.Errorf("write helper script: %w", err)
			return
		}
		f.scriptPath = path
	})
	return f.scriptPath, f.scriptErr
}

// Transcribe starts the helper and returns a stream fed from its stdout.
func (f *FasterWhisper) Transcribe(ctx context.Context, audioPath string, opts Options) (*Stream, error) {
	script, err := f.helperPath()
	if err != nil {
		return nil, err
	}

	args := []string{
		script,
		"--audio", audioPath,
		"--model", f.modelSize,
		"--beam-size", strconv.Itoa(max(opts.BeamSize, 1)),
	}
	if opts.Language != "" && opts.Language != "auto" {
		args = append(args, "--language", opts.Language)
	}
	if opts.WordTimestamps {
		args = append(args, "--word-timestamps")
	}

	cmd := exec.CommandContext(ctx, f.pythonBin, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", f.pythonBin, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	// The first line carries language and total duration; without it the
	// run is unusable and aborted up front.
	var info Info
	if !scanner.Scan() {
		_ = cmd.Wait()
		return nil, fmt.Errorf("model produced no output: %s", strings.TrimSpace(stderr.String()))
	}
	if err := json.Unmarshal(scanner.Bytes(), &info); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("parse model info: %w", err)
	}

	segments := make(chan Segment)
	var streamErr error
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(segments)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var seg Segment
			if err := json.Unmarshal([]byte(line), &seg); err != nil {
				streamErr = fmt.Errorf("parse segment: %w", err)
				_ = cmd.Process.Kill()
				break
			}
			select {
			case segments <- seg:
			case <-ctx.Done():
				streamErr = ctx.Err()
				_ = cmd.Process.Kill()
				_ = cmd.Wait()
				return
			}
		}
		if err := cmd.Wait(); err != nil && streamErr == nil {
			streamErr = fmt.Errorf("model process: %v: %s", err, strings.TrimSpace(stderr.String()))
		}
	}()

	return NewStream(info, segments, func() error {
		<-done
		return streamErr
	}), nil
}
