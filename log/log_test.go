package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/letters")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/letters" {
		t.Errorf("got %q, want /tmp/letters", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv(EnvPath, "/tmp/clinicletter-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/clinicletter-env-log" {
		t.Errorf("got %q, want /tmp/clinicletter-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv(EnvPath, "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default directory")
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "letters_log.txt"} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestLetterSent(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	LetterSent("0f8fad5b-d9cb-469f-a165-70867728950e", "sarah@example.com", "clinicletter_sarah_1.pdf")

	data, err := os.ReadFile(filepath.Join(tmp, "letters_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "0f8fad5b-d9cb-469f-a165-70867728950e") {
		t.Errorf("letters_log.txt missing letter id, got: %q", line)
	}
	// format: "2006-01-02 15:04:05\t[pid]\tid\temail\tfilename\n"
	if got := strings.Count(line, "\t"); got != 4 {
		t.Errorf("expected 4 tabs, got %d in %q", got, line)
	}
}

func TestSubmissionWritesDiagnostics(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Submission("abc", "fallback", 502, &NetworkStats{TTFBMs: 12}, errors.New("bad gateway"))
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"submission", "kind=fallback", "status=502", "bad gateway"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnostics missing %q, got: %q", want, out)
		}
	}
}

func TestLoggingBeforeInitIsNoop(t *testing.T) {
	setupLogDir(t)
	Info("ignored")
	LetterSent("id", "e", "f")
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}

func TestSetLevelFilters(t *testing.T) {
	tmp := setupLogDir(t)
	if err := Init(); err != nil {
		t.Fatal(err)
	}
	if err := SetLevel("warn"); err != nil {
		t.Fatal(err)
	}
	Info("quiet line")
	Warn("loud line")
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "quiet line") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(string(data), "loud line") {
		t.Error("warn line missing")
	}

	if err := SetLevel("chatty"); err == nil {
		t.Error("expected error for unknown level")
	}
}
