package resolver

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeResolver(files map[string]string, exeDir string) *Resolver {
	r := New()
	r.readFile = func(path string) ([]byte, error) {
		if src, ok := files[path]; ok {
			return []byte(src), nil
		}
		return nil, os.ErrNotExist
	}
	r.stat = func(path string) (os.FileInfo, error) {
		return nil, os.ErrNotExist
	}
	r.exe = func() (string, error) { return exeDir, nil }
	return r
}

func TestNormalizeDottedNameBecomesSlashPath(t *testing.T) {
	assert.Equal(t, "collections/list.orus", Normalize("collections.list"))
}

func TestNormalizeBareNameIsStandardLibrary(t *testing.T) {
	assert.Equal(t, "std/math.orus", Normalize("math"))
}

func TestResolveFindsModuleInImporterDirectory(t *testing.T) {
	r := fakeResolver(map[string]string{
		"/project/std/utils.orus": "let x = 1",
	}, "/opt/orus/bin/orusc")

	resolved, err := r.Resolve("/project/main.orus", "utils")
	require.NoError(t, err)
	assert.Equal(t, "/project/std/utils.orus", resolved.AbsPath)
	assert.Equal(t, "let x = 1", resolved.Source)
}

func TestResolveFallsBackToExecutableDirectoryForStdlib(t *testing.T) {
	r := fakeResolver(map[string]string{
		"/opt/orus/bin/std/math.orus": "pub let PI = 3",
	}, "/opt/orus/bin/orusc")

	resolved, err := r.Resolve("/project/main.orus", "math")
	require.NoError(t, err)
	assert.Equal(t, "std/math.orus", resolved.LogicalPath)
	assert.Equal(t, "/opt/orus/bin/std/math.orus", resolved.AbsPath)
}

func TestResolveSearchesOrusPathEntries(t *testing.T) {
	t.Setenv("ORUSPATH", "/extra/one:/extra/two")
	r := fakeResolver(map[string]string{
		"/extra/two/std/json.orus": "pub fn encode() {}",
	}, "/opt/orus/bin/orusc")

	resolved, err := r.Resolve("<repl>", "json")
	require.NoError(t, err)
	assert.Equal(t, "/extra/two/std/json.orus", resolved.AbsPath)
}

func TestResolveReportsEveryRootTriedOnFailure(t *testing.T) {
	r := fakeResolver(map[string]string{}, "/opt/orus/bin/orusc")

	_, err := r.Resolve("/project/main.orus", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
	assert.Contains(t, err.Error(), "could not be resolved")
	assert.Contains(t, err.Error(), "/project/std/missing.orus (importer)")
	assert.Contains(t, err.Error(), "/opt/orus/bin/std/missing.orus (executable)")
}

func TestResolveCachesByRootKindAndPath(t *testing.T) {
	calls := 0
	r := New()
	r.readFile = func(path string) ([]byte, error) {
		calls++
		if path == "/project/std/utils.orus" {
			return []byte("let x = 1"), nil
		}
		return nil, os.ErrNotExist
	}
	r.stat = func(path string) (os.FileInfo, error) { return nil, os.ErrNotExist }
	r.exe = func() (string, error) { return "", os.ErrNotExist }

	_, err := r.Resolve("/project/main.orus", "utils")
	require.NoError(t, err)
	firstCalls := calls

	_, err = r.Resolve("/project/main.orus", "utils")
	require.NoError(t, err)
	assert.Equal(t, firstCalls, calls, "second resolve of the same (root kind, path) should hit the cache, not the filesystem")
}

func TestBeginLoadDetectsCycle(t *testing.T) {
	r := New()
	require.NoError(t, r.BeginLoad("a.b"))
	err := r.BeginLoad("a.b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular import")

	r.EndLoad("a.b")
	require.NoError(t, r.BeginLoad("a.b"), "EndLoad should release the mark so the module can be loaded again later")
}

func TestClearCacheForcesRereadFromDisk(t *testing.T) {
	calls := 0
	r := New()
	r.readFile = func(path string) ([]byte, error) {
		calls++
		return []byte("pub let v = 1"), nil
	}
	r.stat = func(path string) (os.FileInfo, error) { return nil, os.ErrNotExist }
	r.exe = func() (string, error) { return "", os.ErrNotExist }

	_, err := r.Resolve("/project/main.orus", "utils")
	require.NoError(t, err)
	_, err = r.Resolve("/project/main.orus", "utils")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	r.ClearCache()
	_, err = r.Resolve("/project/main.orus", "utils")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
