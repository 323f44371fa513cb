package ilfserr

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want int
	}{
		{KindInternal, 70},
		{KindPlatform, 2},
		{KindTemplateSyntax, 2},
		{KindUsage, 1},
		{KindTemplateUndefined, 1},
		{KindPathShadow, 1},
	}

	for _, tt := range tests {
		if got := ExitCode(tt.kind); got != tt.want {
			t.Errorf("ExitCode(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestOf_UnwrapsThroughFmtErrorf(t *testing.T) {
	t.Parallel()

	base := New(KindPathShadow, "/a", nil)
	wrapped := fmt.Errorf("loading config: %w", base)

	kind, ok := Of(wrapped)
	if !ok || kind != KindPathShadow {
		t.Fatalf("Of(wrapped) = (%v, %v), want (%v, true)", kind, ok, KindPathShadow)
	}
}

func TestOf_NotAnIlfsError(t *testing.T) {
	t.Parallel()

	if _, ok := Of(errors.New("plain error")); ok {
		t.Error("Of(plain error) = true, want false")
	}
}

func TestError_MessageIncludesContext(t *testing.T) {
	t.Parallel()

	err := Newf(KindPathInvalid, "paths.conf:3", "invalid path %q", "/a/..")

	want := `path-invalid: paths.conf:3: invalid path "/a/.."`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
