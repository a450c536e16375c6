package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/airbusgeo/modis-grabber/service"
)

// fakeWget writes a shell script behaving like wget: it records its arguments in <dir>/args,
// creates the downloaded file in the -P directory and exits with exitCode
func fakeWget(t *testing.T, exitCode int) (binary, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	dir := t.TempDir()
	binary, argsFile = filepath.Join(dir, "wget"), filepath.Join(dir, "args")
	script := fmt.Sprintf(`#!/bin/sh
for a in "$@"; do echo "$a"; done > %q
for a in "$@"; do last="$a"; done
echo "     0K .......... .......... 50%% 1,2M 0s" >&2
echo "" >&2
if [ %d -eq 0 ]; then
	echo granule > "$4/${last##*/}"
fi
exit %d
`, argsFile, exitCode, exitCode)
	if err := os.WriteFile(binary, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return binary, argsFile
}

func readArgs(t *testing.T, argsFile string) []string {
	t.Helper()
	b, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimRight(string(b), "\n"), "\n")
}

func TestWgetFetch(t *testing.T) {
	binary, argsFile := fakeWget(t, 0)
	dst := t.TempDir()
	remote := "https://ladsweb.modaps.eosdis.nasa.gov/archive/allData/61/MOD05_L2/2015/002/MOD05_L2.A2015002.0205.061.2017319194513.hdf"

	w := NewWget(binary, NewHTTP("secret", 0))
	file, err := w.Fetch(context.Background(), remote, dst)
	if err != nil {
		t.Fatal(err)
	}
	if file != filepath.Join(dst, "MOD05_L2.A2015002.0205.061.2017319194513.hdf") {
		t.Errorf("unexpected file %s", file)
	}
	if b, err := os.ReadFile(file); err != nil || string(b) != "granule\n" {
		t.Errorf("unexpected content %q: %v", b, err)
	}
	expected := []string{"--no-verbose", "--tries=1", "-P", dst, "--header", "Authorization: Bearer secret", remote}
	if args := readArgs(t, argsFile); !reflect.DeepEqual(args, expected) {
		t.Errorf("expected args %q, got %q", expected, args)
	}
}

func TestWgetWithoutToken(t *testing.T) {
	binary, argsFile := fakeWget(t, 0)
	dst := t.TempDir()
	if _, err := NewWget(binary, NewHTTP("", 0)).Fetch(context.Background(), "https://host/dir/a.hdf", dst); err != nil {
		t.Fatal(err)
	}
	for _, a := range readArgs(t, argsFile) {
		if a == "--header" {
			t.Errorf("unexpected header without token")
		}
	}
}

func TestWgetErrors(t *testing.T) {
	tests := []struct {
		exitCode  int
		temporary bool
	}{
		{wgetNetworkFailure, true},
		{8, false}, // server error response (404...)
		{1, false},
	}
	for _, tt := range tests {
		binary, _ := fakeWget(t, tt.exitCode)
		_, err := NewWget(binary, NewHTTP("", 0)).Fetch(context.Background(), "https://host/dir/a.hdf", t.TempDir())
		if err == nil {
			t.Errorf("exit %d: expected an error", tt.exitCode)
			continue
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != tt.exitCode {
			t.Errorf("exit %d: unexpected error %v", tt.exitCode, err)
		}
		if service.Temporary(err) != tt.temporary {
			t.Errorf("exit %d: expected temporary=%v, got %v", tt.exitCode, tt.temporary, err)
		}
	}
}

func TestWgetMissingBinary(t *testing.T) {
	w := NewWget(filepath.Join(t.TempDir(), "nowget"), NewHTTP("", 0))
	if _, err := w.Fetch(context.Background(), "https://host/dir/a.hdf", t.TempDir()); err == nil {
		t.Errorf("expected an error for a missing binary")
	}
	if w.Name() != "Wget" {
		t.Errorf("unexpected name %s", w.Name())
	}
}
