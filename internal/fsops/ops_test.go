package fsops

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsgate/internal/guard"
	"fsgate/internal/logging"
)

// relPrefix is the current-directory marker every relative find result
// carries.
var relPrefix = "." + string(os.PathSeparator)

func newTestOps(t *testing.T) (*Ops, string) {
	t.Helper()
	root := t.TempDir()
	// Canonicalize so expected relative paths match on systems where the
	// temp dir sits behind a symlink.
	resolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	logger, _ := logging.NewTestLogger()
	g, err := guard.New(resolved, logger)
	require.NoError(t, err)

	return New(g, logger), resolved
}

func createSymlink(t *testing.T, oldname, newname string) {
	t.Helper()
	if err := os.Symlink(oldname, newname); err != nil {
		if runtime.GOOS == "windows" {
			t.Skipf("symlink creation failed on Windows: %v", err)
		}
		t.Fatalf("failed to create symlink: %v", err)
	}
}

func TestWriteThenRead_RoundTrip(t *testing.T) {
	ops, root := newTestOps(t)

	path := filepath.Join(root, "notes.txt")
	content := "line one\nline two\n"

	confirmation, err := ops.WriteFile(path, content)
	require.Nil(t, err)
	assert.Contains(t, confirmation, "Successfully wrote to file")
	assert.Contains(t, confirmation, path)

	got, err := ops.ReadFile(path)
	require.Nil(t, err)
	assert.Equal(t, content, got)
}

func TestWriteFile_CreatesIntermediateDirectories(t *testing.T) {
	ops, root := newTestOps(t)

	path := filepath.Join(root, "a", "b.txt")
	_, err := ops.WriteFile(path, "hi")
	require.Nil(t, err)

	info, statErr := os.Stat(filepath.Join(root, "a"))
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())

	got, err := ops.ReadFile(path)
	require.Nil(t, err)
	assert.Equal(t, "hi", got)
}

func TestWriteFile_OverwritesExisting(t *testing.T) {
	ops, root := newTestOps(t)
	path := filepath.Join(root, "f.txt")

	_, err := ops.WriteFile(path, "first")
	require.Nil(t, err)
	_, err = ops.WriteFile(path, "second")
	require.Nil(t, err)

	got, err := ops.ReadFile(path)
	require.Nil(t, err)
	assert.Equal(t, "second", got)
}

func TestWriteFile_OutsideRootDenied(t *testing.T) {
	ops, root := newTestOps(t)

	outside := filepath.Join(filepath.Dir(root), "escape.txt")
	_, err := ops.WriteFile(outside, "nope")
	require.NotNil(t, err)
	assert.Equal(t, KindAccessDenied, err.Kind)
	assert.Contains(t, err.Error(), "Access denied")

	_, statErr := os.Stat(outside)
	assert.True(t, os.IsNotExist(statErr), "denied write must not create the file")
}

func TestWriteFile_ParentEscapingSymlinkDenied(t *testing.T) {
	ops, root := newTestOps(t)
	outside := t.TempDir()

	// A directory symlink pointing outside the root: creating files
	// through it would land outside, so the parent check must deny it.
	link := filepath.Join(root, "linked")
	createSymlink(t, outside, link)

	_, err := ops.WriteFile(filepath.Join(link, "new.txt"), "x")
	require.NotNil(t, err)
	assert.Equal(t, KindAccessDenied, err.Kind)
}

func TestWriteFile_DanglingSymlinkEscapeDenied(t *testing.T) {
	ops, root := newTestOps(t)
	outside := t.TempDir()

	// Link to a nonexistent file outside the root: the kernel would follow
	// it on open and create the target out there.
	target := filepath.Join(outside, "new.txt")
	link := filepath.Join(root, "evil.txt")
	createSymlink(t, target, link)

	_, err := ops.WriteFile(link, "pwned")
	require.NotNil(t, err)
	assert.Equal(t, KindAccessDenied, err.Kind)

	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr), "denied write must not create the target outside the root")
}

func TestReadFile_NotFound(t *testing.T) {
	ops, root := newTestOps(t)

	_, err := ops.ReadFile(filepath.Join(root, "missing.txt"))
	require.NotNil(t, err)
	assert.Equal(t, KindNotFound, err.Kind)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadFile_OutsideRootDenied_EvenIfExists(t *testing.T) {
	ops, _ := newTestOps(t)

	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("s"), 0644))

	_, err := ops.ReadFile(outside)
	require.NotNil(t, err)
	assert.Equal(t, KindAccessDenied, err.Kind)
	assert.Contains(t, err.Error(), "Access denied")
}

func TestReadFile_SymlinkEscapeDenied(t *testing.T) {
	ops, root := newTestOps(t)

	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("s"), 0644))

	link := filepath.Join(root, "alias.txt")
	createSymlink(t, outside, link)

	_, err := ops.ReadFile(link)
	require.NotNil(t, err)
	assert.Equal(t, KindAccessDenied, err.Kind)
}

func TestReadFile_DanglingSymlinkEscapeDenied(t *testing.T) {
	ops, root := newTestOps(t)

	link := filepath.Join(root, "dangling.txt")
	createSymlink(t, filepath.Join(t.TempDir(), "missing.txt"), link)

	_, err := ops.ReadFile(link)
	require.NotNil(t, err)
	assert.Equal(t, KindAccessDenied, err.Kind, "escape must be denied, not reported as missing")
}

func TestReadFile_InvalidUTF8(t *testing.T) {
	ops, root := newTestOps(t)

	path := filepath.Join(root, "binary.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x01}, 0644))

	_, err := ops.ReadFile(path)
	require.NotNil(t, err)
	assert.Equal(t, KindGeneric, err.Kind)
}

func TestListDirectory(t *testing.T) {
	ops, root := newTestOps(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "file_a.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "script.py"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "subdir1"), 0755))

	entries, err := ops.ListDirectory(root)
	require.Nil(t, err)
	assert.ElementsMatch(t, []string{"file_a.txt", "script.py", "subdir1"}, entries)
}

func TestListDirectory_Empty(t *testing.T) {
	ops, root := newTestOps(t)

	empty := filepath.Join(root, "empty_folder")
	require.NoError(t, os.Mkdir(empty, 0755))

	entries, err := ops.ListDirectory(empty)
	require.Nil(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries, "success result should be an empty list, not nil")
}

func TestListDirectory_NotFound(t *testing.T) {
	ops, root := newTestOps(t)

	_, err := ops.ListDirectory(filepath.Join(root, "nope"))
	require.NotNil(t, err)
	assert.Equal(t, KindNotFound, err.Kind)
	assert.Contains(t, err.Error(), "not found")
}

func TestListDirectory_NotADirectory(t *testing.T) {
	ops, root := newTestOps(t)

	file := filepath.Join(root, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := ops.ListDirectory(file)
	require.NotNil(t, err)
	assert.Equal(t, KindNotADirectory, err.Kind)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestListDirectory_OutsideRootDenied(t *testing.T) {
	ops, root := newTestOps(t)

	_, err := ops.ListDirectory(filepath.Join(root, "..", "other"))
	require.NotNil(t, err)
	assert.Equal(t, KindAccessDenied, err.Kind)
	assert.Contains(t, err.Error(), "Access denied")
}

func TestListDirectory_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits required")
	}
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission bits are not enforced")
	}

	ops, root := newTestOps(t)

	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Mkdir(locked, 0000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })

	_, err := ops.ListDirectory(locked)
	require.NotNil(t, err)
	assert.Equal(t, KindPermissionDenied, err.Kind)
	assert.Contains(t, err.Error(), "Permission denied")
}

func TestFindByPattern_DirectChildrenOnly(t *testing.T) {
	ops, root := newTestOps(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), nil, 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "nested.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "other.md"), nil, 0644))

	matches, err := ops.FindByPattern(root, "*.txt", false)
	require.Nil(t, err)
	assert.ElementsMatch(t, []string{relPrefix + "top.txt"}, matches)
}

func TestFindByPattern_Recursive(t *testing.T) {
	ops, root := newTestOps(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), nil, 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "mid.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "b", "deep.txt"), nil, 0644))

	matches, err := ops.FindByPattern(root, "*.txt", true)
	require.Nil(t, err)
	assert.ElementsMatch(t,
		[]string{relPrefix + "top.txt", relPrefix + filepath.Join("a", "mid.txt"), relPrefix + filepath.Join("a", "b", "deep.txt")},
		matches)
}

func TestFindByPattern_FromSubdirectory_RelativeToRoot(t *testing.T) {
	ops, root := newTestOps(t)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "readme.md"), nil, 0644))

	matches, err := ops.FindByPattern(filepath.Join(root, "docs"), "*.md", false)
	require.Nil(t, err)
	// Paths are relative to the allowed root, not to the base directory.
	assert.ElementsMatch(t, []string{relPrefix + filepath.Join("docs", "readme.md")}, matches)
}

func TestFindByPattern_DropsSymlinkEscapes(t *testing.T) {
	ops, root := newTestOps(t)
	outside := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ok.txt"), nil, 0644))
	createSymlink(t, filepath.Join(outside, "secret.txt"), filepath.Join(root, "leak.txt"))

	matches, err := ops.FindByPattern(root, "*.txt", false)
	require.Nil(t, err)
	assert.ElementsMatch(t, []string{relPrefix + "ok.txt"}, matches)
}

func TestFindByPattern_PermissionDeniedDuringEnumeration(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits required")
	}
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission bits are not enforced")
	}

	ops, root := newTestOps(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "ok.txt"), nil, 0644))
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Mkdir(locked, 0000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })

	_, err := ops.FindByPattern(root, "*.txt", true)
	require.NotNil(t, err)
	assert.Equal(t, KindPermissionDenied, err.Kind)
	assert.Contains(t, err.Error(), "Permission denied")
}

func TestFindByPattern_BaseDirErrors(t *testing.T) {
	ops, root := newTestOps(t)

	file := filepath.Join(root, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	tests := []struct {
		name     string
		baseDir  string
		wantKind Kind
		wantText string
	}{
		{"outside root", filepath.Dir(root), KindAccessDenied, "Access denied"},
		{"missing directory", filepath.Join(root, "nope"), KindNotFound, "not found"},
		{"file as base", file, KindNotADirectory, "not a directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ops.FindByPattern(tt.baseDir, "*", false)
			require.NotNil(t, err)
			assert.Equal(t, tt.wantKind, err.Kind)
			assert.Contains(t, err.Error(), tt.wantText)
		})
	}
}

func TestFindByPattern_AllMatchesPassGuard(t *testing.T) {
	ops, root := newTestOps(t)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "x", "y"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "x", "y", "f.go"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "g.go"), nil, 0644))

	logger, _ := logging.NewTestLogger()
	g, gerr := guard.New(root, logger)
	require.NoError(t, gerr)

	matches, err := ops.FindByPattern(root, "*.go", true)
	require.Nil(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.True(t, g.IsAllowed(filepath.Join(root, m)), "returned path %q must be allowed", m)
	}
}

// Full scenario from the tool contract: write, read back, list, find, and a
// traversal denial, all against one root.
func TestScenario_EndToEnd(t *testing.T) {
	ops, root := newTestOps(t)

	confirmation, werr := ops.WriteFile(filepath.Join(root, "a", "b.txt"), "hi")
	require.Nil(t, werr)
	assert.Contains(t, confirmation, "Successfully wrote")

	content, rerr := ops.ReadFile(filepath.Join(root, "a", "b.txt"))
	require.Nil(t, rerr)
	assert.Equal(t, "hi", content)

	entries, lerr := ops.ListDirectory(filepath.Join(root, "a"))
	require.Nil(t, lerr)
	assert.Equal(t, []string{"b.txt"}, entries)

	matches, ferr := ops.FindByPattern(root, "*.txt", true)
	require.Nil(t, ferr)
	assert.Contains(t, matches, relPrefix + filepath.Join("a", "b.txt"))

	_, derr := ops.ListDirectory(filepath.Join(root, "..", "other"))
	require.NotNil(t, derr)
	assert.Contains(t, derr.Error(), "Access denied")
}
