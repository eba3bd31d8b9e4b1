// Package resolver implements Orus's Module Resolver (C10, spec §4.10):
// logical-name normalization, ordered search-root traversal, a resolution
// cache keyed by (root kind, normalized path), and cycle detection across a
// recursive compile.
//
// Grounded on internal/module/module.go's ModuleLoader: a searchPath slice
// walked in order, a cache map guarding repeat lookups, and findModule's
// try-as-file/try-as-nested-path loop. Generalized to the spec's exact
// four-tier root ordering (importer directory, executable directory with
// its bin/.. fallback, platform-specific system paths, ORUSPATH) and its
// (root kind, normalized path) cache key, since the teacher's loader only
// ever walks one flat, statically-configured list.
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"orus/internal/diag"
)

// RootKind labels which of spec §4.10's four search tiers a root came from
// — part of the cache key, since the same logical path can resolve to a
// different file depending on which tier matched (e.g. an importer-local
// override shadowing a same-named stdlib module).
type RootKind string

const (
	RootImporter   RootKind = "importer"
	RootExecutable RootKind = "executable"
	RootPlatform   RootKind = "platform"
	RootOrusPath   RootKind = "oruspath"
)

type searchRoot struct {
	kind RootKind
	dir  string
}

type cacheKey struct {
	kind RootKind
	path string
}

// Resolved is a successfully located module.
type Resolved struct {
	LogicalPath string // normalized path, e.g. "std/math.orus" or "collections/list.orus"
	AbsPath     string
	Source      string
}

// Resolver is the VM-global resolver instance (spec §5: "the ... loaded-
// module list are VM-global"). Not safe for concurrent use — matching the
// single-threaded, cooperative scheduling model spec §5 assumes throughout.
type Resolver struct {
	cache    map[cacheKey]*Resolved
	loading  map[string]bool
	readFile func(string) ([]byte, error)
	stat     func(string) (os.FileInfo, error)
	exe      func() (string, error)
}

func New() *Resolver {
	return &Resolver{
		cache:    make(map[cacheKey]*Resolved),
		loading:  make(map[string]bool),
		readFile: os.ReadFile,
		stat:     os.Stat,
		exe:      os.Executable,
	}
}

// Normalize implements spec §4.10's name -> path mapping: dotted segments
// become a slash path ("collections.list" -> "collections/list.orus"); a
// bare, separator-free name is standard-library and gets the "std/" prefix
// ("math" -> "std/math.orus").
func Normalize(name string) string {
	if strings.Contains(name, ".") {
		return strings.ReplaceAll(name, ".", "/") + ".orus"
	}
	return "std/" + name + ".orus"
}

// searchRoots builds the ordered root list for one resolution (spec
// §4.10's four tiers). importerDir is "" for the top-level program, since
// "<repl>" has no directory of its own.
func (r *Resolver) searchRoots(importerDir string) []searchRoot {
	var roots []searchRoot
	if importerDir != "" {
		roots = append(roots, searchRoot{RootImporter, importerDir})
	}

	if exe, err := r.exe(); err == nil {
		exeDir := filepath.Dir(exe)
		roots = append(roots, searchRoot{RootExecutable, exeDir})
		if filepath.Base(exeDir) == "bin" {
			parent := filepath.Dir(exeDir)
			if _, err := r.stat(filepath.Join(parent, "std")); err == nil {
				roots = append(roots, searchRoot{RootExecutable, parent})
			}
		}
	}

	roots = append(roots, platformFallbacks()...)

	if path := os.Getenv("ORUSPATH"); path != "" {
		sep := ":"
		if runtime.GOOS == "windows" {
			sep = ";"
		}
		for _, dir := range strings.Split(path, sep) {
			if dir != "" {
				roots = append(roots, searchRoot{RootOrusPath, dir})
			}
		}
	}

	return roots
}

func platformFallbacks() []searchRoot {
	switch runtime.GOOS {
	case "darwin":
		return []searchRoot{
			{RootPlatform, "/Library/Orus"},
			{RootPlatform, "/Library/Orus/latest"},
		}
	case "windows":
		return []searchRoot{
			{RootPlatform, "C:/Program Files/Orus"},
			{RootPlatform, "C:/Program Files (x86)/Orus"},
		}
	default:
		return []searchRoot{
			{RootPlatform, "/usr/local/lib/orus"},
			{RootPlatform, "/usr/lib/orus"},
		}
	}
}

// Resolve locates and reads the module named name, as imported from
// importerPath (may be "<repl>"). The cache is consulted per root, so a
// module already found via a given root kind skips the filesystem entirely
// on a later import of the same logical path through that same tier.
func (r *Resolver) Resolve(importerPath, name string) (*Resolved, error) {
	logical := Normalize(name)

	importerDir := ""
	if importerPath != "" && importerPath != "<repl>" {
		importerDir = filepath.Dir(importerPath)
	}

	var tried []string
	for _, root := range r.searchRoots(importerDir) {
		key := cacheKey{root.kind, logical}
		if cached, ok := r.cache[key]; ok {
			return cached, nil
		}
		candidate := filepath.Join(root.dir, logical)
		tried = append(tried, fmt.Sprintf("%s (%s)", candidate, root.kind))
		data, err := r.readFile(candidate)
		if err != nil {
			continue
		}
		resolved := &Resolved{LogicalPath: logical, AbsPath: candidate, Source: string(data)}
		r.cache[key] = resolved
		return resolved, nil
	}

	return nil, diag.New(diag.Import, "E3003",
		fmt.Sprintf("module '%s' could not be resolved; tried: %s", name, strings.Join(tried, ", ")),
		diag.Location{File: importerPath})
}

// BeginLoad marks name as currently being compiled, for cycle detection
// (spec §4.10: "a loading list is consulted before compile; any repeat is
// an error"). Returns an error if name is already loading.
func (r *Resolver) BeginLoad(name string) error {
	logical := Normalize(name)
	if r.loading[logical] {
		return diag.New(diag.Import, "E3003",
			fmt.Sprintf("circular import: module '%s' is already being loaded", name),
			diag.Location{})
	}
	r.loading[logical] = true
	return nil
}

// EndLoad releases the loading mark BeginLoad set, whether the compile
// succeeded or failed.
func (r *Resolver) EndLoad(name string) {
	delete(r.loading, Normalize(name))
}

// ClearCache drops every cached resolution. Exposed for hosts that want to
// force a re-read of on-disk modules (e.g. a REPL's `:reload`), mirroring
// ModuleLoader.ClearCache's same escape hatch in the teacher.
func (r *Resolver) ClearCache() {
	r.cache = make(map[cacheKey]*Resolved)
}
