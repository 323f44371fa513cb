package engine

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"golang.org/x/tools/txtar"

	"github.com/orchitech/interlayfs/internal/mountexec"
)

//go:embed testdata/*.txtar
var goldenFixtures embed.FS

// TestGolden_BasicComposition runs every testdata/*.txtar fixture: each
// archive bundles a treefile, a pathfile, and the expected resolved mount
// sequence as sibling files, kept as a single checked-in archive rather
// than three loose files per case.
func TestGolden_BasicComposition(t *testing.T) {
	t.Parallel()

	entries, err := goldenFixtures.ReadDir("testdata")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	for _, entry := range entries {
		entry := entry

		t.Run(entry.Name(), func(t *testing.T) {
			t.Parallel()

			raw, err := goldenFixtures.ReadFile("testdata/" + entry.Name())
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}

			runGoldenArchive(t, txtar.Parse(raw))
		})
	}
}

func runGoldenArchive(t *testing.T, arc *txtar.Archive) {
	t.Helper()

	files := map[string]string{}
	for _, f := range arc.Files {
		files[f.Name] = string(f.Data)
	}

	treefile, ok := files["trees.conf"]
	if !ok {
		t.Fatalf("archive missing trees.conf")
	}

	pathfile, ok := files["paths.conf"]
	if !ok {
		t.Fatalf("archive missing paths.conf")
	}

	expectedMounts, ok := files["expected.mounts"]
	if !ok {
		t.Fatalf("archive missing expected.mounts")
	}

	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll("/target", 0o755)

	for _, line := range strings.Split(strings.TrimSpace(treefile), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		_ = fsys.MkdirAll(fields[1], 0o755)
	}

	_ = afero.WriteFile(fsys, "/trees.conf", []byte(treefile), 0o644)
	_ = afero.WriteFile(fsys, "/paths.conf", []byte(pathfile), 0o644)

	backend := mountexec.NewRecordingBackend()

	sess, err := Load("/trees.conf", "/paths.conf", Config{
		Fs:      fsys,
		Backend: backend,
		Lookup:  func(string) (string, bool) { return "", false },
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := sess.Mount(context.Background(), "/target"); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	var got strings.Builder

	for _, m := range backend.Mounts {
		mode := "rw"
		if m.RO {
			mode = "ro"
		}

		fmt.Fprintf(&got, "%s -> %s [%s]\n", m.Src, m.Dst, mode)
	}

	if strings.TrimSpace(got.String()) != strings.TrimSpace(expectedMounts) {
		t.Fatalf("mount sequence mismatch:\n got:\n%s\nwant:\n%s", got.String(), expectedMounts)
	}
}
