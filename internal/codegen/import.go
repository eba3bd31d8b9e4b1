package codegen

import (
	"orus/internal/ast"
	"orus/internal/diag"
	"orus/internal/modreg"
)

// compileImport implements spec §4.6's Imports contract: resolve the
// module, then for each named symbol (or all exports) finalize the import
// by reserving its exported register in the global allocator and binding it
// locally.
func (c *Compiler) compileImport(s *ast.ImportStmt) {
	c.setPos(s.Pos)
	mod, ok := c.Modules.FindModule(s.Module)
	if !ok {
		c.errorAt(diag.ModuleNotFound(s.Module, c.pos(s.Pos)))
		return
	}

	names := s.Symbols
	if len(names) == 0 {
		names = mod.ExportNames()
	}
	// Left-to-right, fail-fast: the first unresolved symbol aborts the whole
	// use statement with no partial binding of symbols to its right.
	for _, name := range names {
		if !c.finalizeImportSymbol(s.Module, name, s.Pos) {
			break
		}
	}
}

// finalizeImportSymbol implements spec §4.6's finalize_import_symbol: for
// struct/enum kinds it merely records the import; for globals/functions the
// exported register index is reserved in the global allocator (pinning it),
// and the binding is registered with type "function" for function exports
// (or the exported type/ANY for globals). Reports whether the symbol
// resolved; the caller stops processing the remaining names on false.
func (c *Compiler) finalizeImportSymbol(module, name string, pos ast.Pos) bool {
	entry, err := c.Modules.ImportVariable(c.ModuleName, name, module)
	if err != nil {
		c.errorAt(diag.ExportNotFound(module, name, c.pos(pos)))
		return false
	}

	switch entry.Kind {
	case modreg.ExportStruct, modreg.ExportEnum:
		// Type-only import: nothing to bind at the register level.
		return true
	case modreg.ExportFunction:
		c.Regs.ReserveGlobalSlot(name, entry.RegisterIndex)
		c.fn.declare(name, entry.RegisterIndex, "function", false, pos.Line)
	default: // ExportGlobal, ExportIntrinsic
		typ := entry.Type
		if typ == "" {
			typ = "any"
		}
		c.Regs.ReserveGlobalSlot(name, entry.RegisterIndex)
		c.fn.declare(name, entry.RegisterIndex, typ, true, pos.Line)
	}
	return true
}
