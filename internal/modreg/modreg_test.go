package modreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndResolveExport(t *testing.T) {
	mgr := NewManager()
	mgr.RegisterModuleExport("math", "square", ExportFunction)
	require.NoError(t, mgr.SetModuleExportMetadata("math", "square", 3, "fn(i32) -> i32", 1, ""))

	e, err := mgr.ResolveExport("math", "square")
	require.NoError(t, err)
	assert.Equal(t, ExportFunction, e.Kind)
	assert.Equal(t, 3, e.RegisterIndex)
}

func TestResolveExportMissingModule(t *testing.T) {
	mgr := NewManager()
	_, err := mgr.ResolveExport("nope", "x")
	assert.EqualError(t, err, "module 'nope' does not export 'x'")
}

func TestResolveExportMissingSymbol(t *testing.T) {
	mgr := NewManager()
	mgr.RegisterModuleExport("math", "square", ExportFunction)
	_, err := mgr.ResolveExport("math", "cube")
	assert.Error(t, err)
}

func TestImportVariableRecordsImport(t *testing.T) {
	mgr := NewManager()
	mgr.RegisterModuleExport("math", "pi", ExportGlobal)
	require.NoError(t, mgr.SetModuleExportMetadata("math", "pi", 0, "f64", 0, ""))

	_, err := mgr.ImportVariable("main", "pi", "math")
	require.NoError(t, err)

	main, ok := mgr.FindModule("main")
	require.True(t, ok)
	require.Len(t, main.Imports, 1)
	assert.Equal(t, "pi", main.Imports[0].Name)
	assert.Equal(t, "math", main.Imports[0].SourceModule)
}

func TestImportVariableFailsOnUnknownSymbol(t *testing.T) {
	mgr := NewManager()
	mgr.LoadModule("math")
	_, err := mgr.ImportVariable("main", "missing", "math")
	assert.Error(t, err)
}
