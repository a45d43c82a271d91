package hints

import (
	"strings"
	"testing"
)

// clearCIEnv removes CI markers so detection tests are deterministic.
func clearCIEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "ROD_NO_SANDBOX", "ROD_BROWSER_BIN"} {
		t.Setenv(v, "")
	}
}

func TestForBrowserConnect(t *testing.T) {
	t.Run("CI without sandbox flag", func(t *testing.T) {
		clearCIEnv(t)
		t.Setenv("CI", "true")

		hint := ForBrowserConnect()
		if !strings.Contains(hint, "ROD_NO_SANDBOX=1") {
			t.Errorf("hint = %q, want ROD_NO_SANDBOX suggestion", hint)
		}
		if !strings.HasPrefix(hint, "\n  hint: ") {
			t.Errorf("hint = %q, want standard prefix", hint)
		}
	})

	t.Run("sandbox already disabled", func(t *testing.T) {
		clearCIEnv(t)
		t.Setenv("CI", "true")
		t.Setenv("ROD_NO_SANDBOX", "1")

		if hint := ForBrowserConnect(); strings.Contains(hint, "ROD_NO_SANDBOX") {
			t.Errorf("hint = %q, sandbox suggestion despite flag set", hint)
		}
	})

	t.Run("custom browser suggested when unset", func(t *testing.T) {
		clearCIEnv(t)

		if hint := ForBrowserConnect(); !strings.Contains(hint, "ROD_BROWSER_BIN") {
			t.Errorf("hint = %q, want ROD_BROWSER_BIN suggestion", hint)
		}
	})
}

func TestForNoFilesMatched(t *testing.T) {
	t.Run("pattern with globstar", func(t *testing.T) {
		hint := ForNoFilesMatched("docs/**/*.md")
		if !strings.Contains(hint, "base directory") {
			t.Errorf("hint = %q", hint)
		}
	})

	t.Run("pattern without globstar", func(t *testing.T) {
		hint := ForNoFilesMatched("docs/*.md")
		if !strings.Contains(hint, "**") {
			t.Errorf("hint = %q, want recursive matching suggestion", hint)
		}
	})
}

func TestForConfigNotFound(t *testing.T) {
	paths := []string{
		"mdbatch.yaml",
		"/home/u/.config/go-mdbatch/mdbatch.yaml",
	}
	hint := ForConfigNotFound(paths)

	if !strings.Contains(hint, "--config") {
		t.Errorf("hint = %q, want --config suggestion", hint)
	}
	if !strings.Contains(hint, ".config/go-mdbatch") {
		t.Errorf("hint = %q, want user config path", hint)
	}
}

func TestForOutputDirectory(t *testing.T) {
	if hint := ForOutputDirectory(); !strings.Contains(hint, "writable") {
		t.Errorf("hint = %q", hint)
	}
}

func TestForUnhealthySystem(t *testing.T) {
	if hint := ForUnhealthySystem(); !strings.Contains(hint, "--workers") {
		t.Errorf("hint = %q", hint)
	}
}
