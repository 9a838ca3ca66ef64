package dirstat

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFiles creates files of the given sizes below root.
func writeFiles(t *testing.T, root string, files map[string]int) {
	t.Helper()

	for name, size := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644))
	}
}

func TestProfile_Scenario(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]int{
		"a.txt": 100,
		"b.txt": 300,
		"c.log": 50,
	})

	stats, err := Profile(context.Background(), Options{
		Root:       root,
		Extensions: []string{".txt", ".log"},
		Limit:      2,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.Extensions[".txt"].Count)
	assert.Equal(t, int64(1), stats.Extensions[".log"].Count)
	assert.Equal(t, int64(400), stats.Extensions[".txt"].Size)
	assert.Equal(t, int64(3), stats.TotalTracked)
	assert.Equal(t, int64(450), stats.TotalBytes)
	assert.Equal(t, []FileStat{
		{Path: "b.txt", Size: 300},
		{Path: "a.txt", Size: 100},
	}, stats.TopFiles)
	assert.InDelta(t, 66.67, stats.Extensions[".txt"].Percent, 0.01)
	assert.InDelta(t, 33.33, stats.Extensions[".log"].Percent, 0.01)
	assert.InDelta(t, 400.0/(1<<30), stats.Extensions[".txt"].SizeGiB, 1e-12)
	assert.InDelta(t, 50.0/(1<<30), stats.SizesGiB()[".log"], 1e-12)
	assert.InDelta(t, 66.67, stats.Percentages()[".txt"], 0.01)
	assert.Equal(t, 2, stats.Limit)
	assert.Zero(t, stats.Skipped)
}

func TestProfile_EmptyDirectory(t *testing.T) {
	root := t.TempDir()

	stats, err := Profile(context.Background(), Options{
		Root:       root,
		Extensions: []string{".txt", ".pdf"},
		Limit:      10,
	}, nil)
	require.NoError(t, err)

	assert.Zero(t, stats.TotalTracked)
	assert.Empty(t, stats.TopFiles)
	assert.Len(t, stats.Extensions, 2)

	for ext, pct := range stats.Percentages() {
		assert.Zero(t, pct, ext)
	}
}

func TestProfile_EmptyExtensionSet(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]int{"a.txt": 10, "b.log": 20})

	stats, err := Profile(context.Background(), Options{Root: root, Limit: 10}, nil)
	require.NoError(t, err)

	assert.Zero(t, stats.TotalTracked)
	assert.Zero(t, stats.TotalBytes)
	assert.Empty(t, stats.Extensions)
	assert.Empty(t, stats.TopFiles)
}

func TestProfile_LimitOne(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]int{"x.txt": 10, "y.txt": 20, "z.txt": 5})

	stats, err := Profile(context.Background(), Options{
		Root:       root,
		Extensions: []string{".txt"},
		Limit:      1,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []FileStat{{Path: "y.txt", Size: 20}}, stats.TopFiles)
	assert.Equal(t, int64(3), stats.TotalTracked)
}

func TestProfile_NestedAndUntracked(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]int{
		"docs/report.pdf":        40,
		"docs/deep/notes.txt":    15,
		"src/main.go":            999,
		"backups/site.tar.gz":    70,
		"backups/single.gz":      80,
		".hidden/inside.txt":     5,
		"README":                 3,
		"docs/deep/deeper/a.txt": 1,
	})

	stats, err := Profile(context.Background(), Options{
		Root:       root,
		Extensions: []string{".txt", ".pdf", ".tar.gz"},
		Limit:      10,
		Workers:    4,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Extensions[".txt"].Count)
	assert.Equal(t, int64(1), stats.Extensions[".pdf"].Count)
	assert.Equal(t, int64(1), stats.Extensions[".tar.gz"].Count)
	assert.Equal(t, int64(5), stats.TotalTracked)

	var sum int64
	for _, stat := range stats.Extensions {
		sum += stat.Count
	}

	assert.Equal(t, stats.TotalTracked, sum)

	for _, f := range stats.TopFiles {
		assert.NotEqual(t, "src/main.go", f.Path)
		assert.NotEqual(t, "backups/single.gz", f.Path)
	}

	assert.Equal(t, FileStat{Path: "backups/site.tar.gz", Size: 70}, stats.TopFiles[0])
	assert.Equal(t, FileStat{Path: "docs/report.pdf", Size: 40}, stats.TopFiles[1])
}

func TestProfile_InvalidRoot(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]int{"file.txt": 1})

	tests := []struct {
		name string
		root string
	}{
		{"missing", filepath.Join(root, "does-not-exist")},
		{"file", filepath.Join(root, "file.txt")},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := Profile(context.Background(), Options{
				Root:       tt.root,
				Extensions: []string{".txt"},
				Limit:      10,
			}, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRoot)
			assert.Nil(t, stats)
		})
	}
}

func TestProfile_InvalidLimit(t *testing.T) {
	_, err := Profile(context.Background(), Options{Root: t.TempDir(), Limit: 0}, nil)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestProfile_InvalidExclude(t *testing.T) {
	_, err := Profile(context.Background(), Options{
		Root:     t.TempDir(),
		Limit:    1,
		Excludes: []string{"("},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compiling exclusion pattern")
}

func TestProfile_SkipsUnreadableFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]int{"a.txt": 100, "gone.txt": 500, "c.log": 50})

	saved := statEntry
	t.Cleanup(func() { statEntry = saved })

	statEntry = func(path string, d fs.DirEntry) (fs.FileInfo, error) {
		if filepath.Base(path) == "gone.txt" {
			return nil, fs.ErrNotExist
		}

		return d.Info()
	}

	stats, err := Profile(context.Background(), Options{
		Root:       root,
		Extensions: []string{".txt", ".log"},
		Limit:      10,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Extensions[".txt"].Count)
	assert.Equal(t, int64(100), stats.Extensions[".txt"].Size)
	assert.Equal(t, int64(2), stats.TotalTracked)
	assert.Equal(t, int64(1), stats.Skipped)

	for _, f := range stats.TopFiles {
		assert.NotEqual(t, "gone.txt", f.Path)
	}
}

func TestProfile_SkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFiles(t, root, map[string]int{"real.txt": 10})
	writeFiles(t, outside, map[string]int{"elsewhere.txt": 1000})

	if err := os.Symlink(outside, filepath.Join(root, "linkdir")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	require.NoError(t, os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "alias.txt")))
	// A cycle back to the root must not hang the walk.
	require.NoError(t, os.Symlink(root, filepath.Join(root, "loop")))

	stats, err := Profile(context.Background(), Options{
		Root:       root,
		Extensions: []string{".txt"},
		Limit:      10,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.TotalTracked)
	assert.Equal(t, []FileStat{{Path: "real.txt", Size: 10}}, stats.TopFiles)
}

func TestProfile_ExcludesAndDepth(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]int{
		"top.txt":            1,
		"one/a.txt":          2,
		"one/two/b.txt":      3,
		"node_modules/x.txt": 4,
		".git/objects/y.txt": 5,
	})

	stats, err := Profile(context.Background(), Options{
		Root:       root,
		Extensions: []string{".txt"},
		Limit:      10,
		Excludes:   []string{`.*\.git/.*`, `.*node_modules.*`},
		Depth:      2,
	}, nil)
	require.NoError(t, err)

	paths := make([]string, 0, len(stats.TopFiles))
	for _, f := range stats.TopFiles {
		paths = append(paths, f.Path)
	}

	assert.ElementsMatch(t, []string{"top.txt", "one/a.txt"}, paths)
}

func TestProfile_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]int{"a.txt": 1, "b/c.txt": 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := Profile(ctx, Options{Root: root, Extensions: []string{".txt"}, Limit: 2}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, stats)
}

func TestProfile_ProgressHook(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]int{"a.txt": 1})

	var calls atomic.Int64

	saved := statEntry
	t.Cleanup(func() { statEntry = saved })

	statEntry = func(_ string, d fs.DirEntry) (fs.FileInfo, error) {
		time.Sleep(50 * time.Millisecond)

		return d.Info()
	}

	_, err := Profile(context.Background(), Options{
		Root:             root,
		Extensions:       []string{".txt"},
		Limit:            1,
		ProgressInterval: 5 * time.Millisecond,
	}, func(int64, int64) { calls.Add(1) })
	require.NoError(t, err)

	assert.Positive(t, calls.Load())
}

func TestProfile_DoesNotModifyTree(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]int{"a.txt": 1, "sub/b.txt": 2})

	before := listTree(t, root)

	_, err := Profile(context.Background(), Options{Root: root, Extensions: []string{".txt"}, Limit: 1}, nil)
	require.NoError(t, err)

	assert.Equal(t, before, listTree(t, root))
}

func listTree(t *testing.T, root string) []string {
	t.Helper()

	var paths []string

	err := filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		paths = append(paths, path)

		return nil
	})
	require.NoError(t, err)

	return paths
}

func TestCalculateDepth(t *testing.T) {
	root := filepath.Join("base", "root")

	assert.Equal(t, 0, calculateDepth(root, root))
	assert.Equal(t, 1, calculateDepth(filepath.Join(root, "a"), root))
	assert.Equal(t, 3, calculateDepth(filepath.Join(root, "a", "b", "c"), root))
}
