package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	info := String()

	if !strings.Contains(info, "voicetask version") {
		t.Error("version info should contain 'voicetask version'")
	}

	if !strings.Contains(info, "dev") {
		t.Error("version info should contain default version 'dev'")
	}

	if !strings.Contains(info, runtime.Version()) {
		t.Error("version info should contain the Go runtime version")
	}
}
