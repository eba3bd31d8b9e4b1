// Package modreg implements the Orus Module Manager (spec §3 RegisterModule,
// §4.5): export/import tables keyed by module name and cross-module symbol
// resolution.
//
// Grounded on internal/module/module.go's cache/lookup shape, generalized
// from "loader that returns runtime values" into "manager that records
// compiler-time export metadata", per spec §4.5/§4.6.
package modreg

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// ExportKind enumerates the kinds an export can carry (spec §3 ExportEntry).
type ExportKind uint8

const (
	ExportGlobal ExportKind = iota
	ExportFunction
	ExportStruct
	ExportEnum
	ExportIntrinsic
)

// ExportEntry describes one symbol a module makes visible to importers.
type ExportEntry struct {
	Name           string
	Kind           ExportKind
	RegisterIndex  int
	Type           string // the typed AST's resolved type name; opaque here
	FunctionIndex  int
	IntrinsicSymbol string
}

// ImportEntry records a symbol a module pulled in from another module.
type ImportEntry struct {
	Name         string
	SourceModule string
	Kind         ExportKind
}

// Module mirrors spec §3's RegisterModule.
type Module struct {
	Name    string
	exports *swiss.Map[string, ExportEntry]
	Imports []ImportEntry
}

func newModule(name string) *Module {
	return &Module{Name: name, exports: swiss.NewMap[string, ExportEntry](8)}
}

func (m *Module) ExportNames() []string {
	var out []string
	m.exports.Iter(func(k string, _ ExportEntry) bool {
		out = append(out, k)
		return false
	})
	return out
}

// Manager is the VM-global module manager (spec §4.5).
type Manager struct {
	modules map[string]*Module
}

func NewManager() *Manager {
	return &Manager{modules: make(map[string]*Module)}
}

// LoadModule implements get-or-create semantics for a module's export table.
func (mgr *Manager) LoadModule(name string) *Module {
	if m, ok := mgr.modules[name]; ok {
		return m
	}
	m := newModule(name)
	mgr.modules[name] = m
	return m
}

func (mgr *Manager) FindModule(name string) (*Module, bool) {
	m, ok := mgr.modules[name]
	return m, ok
}

// RegisterModuleExport records a new export. Exports are unique per
// (module, name) — re-registering the same name overwrites metadata, which
// is how spec §4.6's two-phase "record kind now, attach register index and
// type later" deferred export works (SetModuleExportMetadata below).
func (mgr *Manager) RegisterModuleExport(moduleName, name string, kind ExportKind) {
	m := mgr.LoadModule(moduleName)
	m.exports.Put(name, ExportEntry{Name: name, Kind: kind})
}

// SetModuleExportMetadata attaches the final register index and type to an
// already-recorded export (spec §4.6: "after compilation, the driver calls
// set_module_export_metadata to attach the final register index and
// inferred type").
func (mgr *Manager) SetModuleExportMetadata(moduleName, name string, reg int, typ string, funcIndex int, intrinsic string) error {
	m := mgr.LoadModule(moduleName)
	e, ok := m.exports.Get(name)
	if !ok {
		return fmt.Errorf("modreg: no export %q recorded for module %q", name, moduleName)
	}
	e.RegisterIndex = reg
	e.Type = typ
	e.FunctionIndex = funcIndex
	e.IntrinsicSymbol = intrinsic
	m.exports.Put(name, e)
	return nil
}

// ResolveExport implements spec §4.5's resolve_export.
func (mgr *Manager) ResolveExport(moduleName, symbol string) (ExportEntry, error) {
	m, ok := mgr.modules[moduleName]
	if !ok {
		return ExportEntry{}, fmt.Errorf("module '%s' does not export '%s'", moduleName, symbol)
	}
	e, ok := m.exports.Get(symbol)
	if !ok {
		return ExportEntry{}, fmt.Errorf("module '%s' does not export '%s'", moduleName, symbol)
	}
	return e, nil
}

// ImportVariable records that targetModule imported symbol from
// sourceModule, after resolving it (spec §4.5 import_variable).
func (mgr *Manager) ImportVariable(targetModule, symbol, sourceModule string) (ExportEntry, error) {
	entry, err := mgr.ResolveExport(sourceModule, symbol)
	if err != nil {
		return ExportEntry{}, err
	}
	target := mgr.LoadModule(targetModule)
	target.Imports = append(target.Imports, ImportEntry{Name: symbol, SourceModule: sourceModule, Kind: entry.Kind})
	return entry, nil
}
