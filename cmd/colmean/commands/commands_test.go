package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// run executes the root command with args and returns its standard output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestGenComputeVerify(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	for _, tc := range []struct {
		layout, dtype, compress string
	}{
		{"row", "f32", "raw"},
		{"col", "f64", "zstd"},
		{"row", "f64", "lz4"},
	} {
		name := tc.layout + "-" + tc.dtype + "-" + tc.compress
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".cmat")
			if _, err := run(t, "gen", "--rows", "300", "--cols", "17", "--layout", tc.layout,
				"--dtype", tc.dtype, "--compress", tc.compress, "--seed", "9", "-o", path, "--log-level", "error"); err != nil {
				t.Fatalf("gen failed: %v", err)
			}

			meansPath := filepath.Join(dir, name+".txt")
			if _, err := run(t, "compute", "-i", path, "-o", meansPath, "--workers", "2"); err != nil {
				t.Fatalf("compute failed: %v", err)
			}
			raw, err := os.ReadFile(meansPath)
			if err != nil {
				t.Fatal(err)
			}
			lines := strings.Fields(string(raw))
			if len(lines) != 17 {
				t.Fatalf("Expected 17 means, got %d", len(lines))
			}
			for _, l := range lines {
				v, err := strconv.ParseFloat(l, 64)
				if err != nil {
					t.Fatalf("Bad output line %q: %v", l, err)
				}
				// Generated values lie in [0, 1).
				if v < 0 || v >= 1 {
					t.Errorf("Mean %v outside [0, 1)", v)
				}
			}

			if out, err := run(t, "verify", "-i", path); err != nil {
				t.Fatalf("verify failed: %v\n%s", err, out)
			}
		})
	}
	computeOutput = ""
}

func TestVerifyRejectsColumnMajorSample(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "col.cmat")
	if _, err := run(t, "gen", "--rows", "10", "--cols", "3", "--layout", "col", "-o", path); err != nil {
		t.Fatalf("gen failed: %v", err)
	}
	_, err := run(t, "verify", "-i", path, "--sample")
	verifySample = false
	if err == nil {
		t.Fatal("Expected an error for sample normalization of a column-major file")
	}
}

func TestBench(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "m.cmat")
	if _, err := run(t, "gen", "--rows", "200", "--cols", "8", "--layout", "row", "--dtype", "f32", "-o", path); err != nil {
		t.Fatalf("gen failed: %v", err)
	}
	out, err := run(t, "bench", "-i", path, "--runs", "3")
	if err != nil {
		t.Fatalf("bench failed: %v", err)
	}
	if !strings.Contains(out, "Digests") {
		t.Errorf("Expected a digest report, got:\n%s", out)
	}
}

func TestGenRejectsBadFlags(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.cmat")
	for _, args := range [][]string{
		{"gen", "--layout", "diagonal", "-o", path},
		{"gen", "--dtype", "f16", "--layout", "row", "-o", path},
		{"gen", "--compress", "gzip", "--dtype", "f32", "-o", path},
	} {
		if _, err := run(t, args...); err == nil {
			t.Errorf("Expected %v to fail", args)
		}
	}
	genLayout, genDType, genCompress = "row", "f32", "raw"
}

func TestVersionAndDevice(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	out, err := run(t, "version")
	if err != nil || !strings.Contains(out, "colmean v"+version) {
		t.Errorf("version: err=%v out=%q", err, out)
	}
	out, err = run(t, "device")
	if err != nil || !strings.Contains(out, "Tile") {
		t.Errorf("device: err=%v out=%q", err, out)
	}
}
