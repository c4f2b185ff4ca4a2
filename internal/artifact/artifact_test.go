package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"transcription-service/internal/config"
)

func TestLocalSave(t *testing.T) {
	dir := t.TempDir()
	l := &Local{baseDir: dir}

	path, err := l.Save(context.Background(), "job-1.srt", []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n"), "application/x-subrip")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if path != filepath.Join(dir, "job-1.srt") {
		t.Fatalf("unexpected path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("artifact is empty")
	}
}

func TestLocalSaveRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	l := &Local{baseDir: dir}

	path, err := l.Save(context.Background(), "../escape.txt", []byte("x"), "text/plain")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if path != filepath.Join(dir, "escape.txt") {
		t.Fatalf("artifact escaped the base directory: %q", path)
	}
}

func TestKey(t *testing.T) {
	if got := Key("abc", true); got != "abc.srt" {
		t.Fatalf("timestamped key = %q", got)
	}
	if got := Key("abc", false); got != "abc.txt" {
		t.Fatalf("plain key = %q", got)
	}
}

func TestNewFromConfigDefaultsToLocal(t *testing.T) {
	st, err := NewFromConfig(context.Background(), config.Config{ArtifactDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := st.(*Local); !ok {
		t.Fatalf("expected local store, got %T", st)
	}
}
