// ABOUTME: Tests for the .env loader: basic pairs, comments, quotes, export prefix and no-override.
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/2389-research/playgraph/config"
)

func unsetForTest(t *testing.T, key string) {
	t.Helper()
	_ = os.Unsetenv(key)
	t.Cleanup(func() { _ = os.Unsetenv(key) })
}

func TestLoadDotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := `# playgraph overrides
TEST_PG_PLAIN=hello

TEST_PG_DOUBLE="double quoted"
TEST_PG_SINGLE='single quoted'
export TEST_PG_EXPORTED=yes
TEST_PG_EXISTING=fromfile
not a pair
=novalue
`
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"TEST_PG_PLAIN", "TEST_PG_DOUBLE", "TEST_PG_SINGLE", "TEST_PG_EXPORTED"} {
		unsetForTest(t, k)
	}
	t.Setenv("TEST_PG_EXISTING", "fromenv")

	if err := config.LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	want := map[string]string{
		"TEST_PG_PLAIN":    "hello",
		"TEST_PG_DOUBLE":   "double quoted",
		"TEST_PG_SINGLE":   "single quoted",
		"TEST_PG_EXPORTED": "yes",
		"TEST_PG_EXISTING": "fromenv",
	}
	for k, v := range want {
		if got := os.Getenv(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("missing file should not error, got %v", err)
	}
}
