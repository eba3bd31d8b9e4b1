// Package register implements the Orus register file (spec §4.4): three
// disjoint index ranges (global/frame/temp), typed shadow banks for
// unboxed fast-path arithmetic, and residency hints.
//
// Grounded on compregister.RegisterAllocator's free-list allocator
// (Alloc/Free/Lock/Unlock) and vmregister.RegisterVM's flat registers
// slice, generalized into a standalone package with the typed shadow banks
// spec §4.4 adds on top.
package register

import "github.com/dolthub/swiss"

// Bank identifies a typed shadow register bank.
type Bank uint8

const (
	BankNone Bank = iota
	BankI32
	BankI64
	BankU32
	BankU64
	BankF64
	BankBool
)

// Range marks which disjoint index range a register handle belongs to.
type Range uint8

const (
	RangeGlobal Range = iota
	RangeFrame
	RangeTemp
)

// typedBanks holds one unboxed slot per primitive kind, indexed in parallel
// with the boxed register array.
type typedBanks struct {
	i32  []int32
	i64  []int64
	u32  []uint32
	u64  []uint64
	f64  []float64
	bl   []bool
}

// File is the register file: index space partitioned into global/frame/temp
// ranges plus the typed shadow banks.
type File struct {
	nextGlobal int
	globalNames *swiss.Map[string, int]

	frameTop    int
	frameFree   []int
	frameOwners map[int]int // register -> scope id, for scope-exit bulk free

	tempTop  int
	tempFree []int

	banks     typedBanks
	regTypes  map[int]Bank // authoritative bank per register index, if any
	residency map[int]Bank // residency hint: pin a register to a bank for a region
}

const maxRegisters = 1 << 16

func New() *File {
	return &File{
		globalNames: swiss.NewMap[string, int](16),
		frameOwners: make(map[int]int),
		regTypes:    make(map[int]Bank),
		residency:   make(map[int]Bank),
		banks: typedBanks{
			i32: make([]int32, maxRegisters),
			i64: make([]int64, maxRegisters),
			u32: make([]uint32, maxRegisters),
			u64: make([]uint64, maxRegisters),
			f64: make([]float64, maxRegisters),
			bl:  make([]bool, maxRegisters),
		},
	}
}

// AllocGlobal returns a stable slot reserved for the lifetime of a module's
// top-level. Global slots are never freed.
func (f *File) AllocGlobal(name string) int {
	if idx, ok := f.globalNames.Get(name); ok {
		return idx
	}
	idx := f.nextGlobal
	f.nextGlobal++
	f.globalNames.Put(name, idx)
	return idx
}

// ReserveGlobalSlot pins a specific slot index to name, used when importing
// a module export: the exported register index is reserved as-is rather
// than allocated fresh (spec §4.6 "the exported register index is reserved
// in the global allocator").
func (f *File) ReserveGlobalSlot(name string, slot int) {
	f.globalNames.Put(name, slot)
	if slot >= f.nextGlobal {
		f.nextGlobal = slot + 1
	}
}

func (f *File) LookupGlobal(name string) (int, bool) { return f.globalNames.Get(name) }

// frame/temp registers share one flat index space above the global range so
// that a single register operand byte-width works for the whole register
// file; globalBase is the first non-global index.
const globalBase = 1 << 14

// AllocFrame returns a slot valid until its lexical scope exits, tagged with
// scopeID for bulk release on scope exit.
func (f *File) AllocFrame(scopeID int) int {
	var reg int
	if n := len(f.frameFree); n > 0 {
		reg = f.frameFree[n-1]
		f.frameFree = f.frameFree[:n-1]
	} else {
		reg = globalBase + f.frameTop
		f.frameTop++
	}
	f.frameOwners[reg] = scopeID
	return reg
}

// FreeFrame releases a single frame register.
func (f *File) FreeFrame(reg int) {
	delete(f.frameOwners, reg)
	delete(f.regTypes, reg)
	delete(f.residency, reg)
	f.frameFree = append(f.frameFree, reg)
}

// FreeScope releases every frame register owned by scopeID (spec §4.6
// compile_block_with_scope: "frees frame registers owned by symbols in
// that scope before popping").
func (f *File) FreeScope(scopeID int) {
	for reg, owner := range f.frameOwners {
		if owner == scopeID {
			f.FreeFrame(reg)
		}
	}
}

// AllocTemp returns a short-lived slot; the caller must FreeTemp it along
// every control-flow path before the lexical region exits (spec §5).
func (f *File) AllocTemp() int {
	if n := len(f.tempFree); n > 0 {
		reg := f.tempFree[n-1]
		f.tempFree = f.tempFree[:n-1]
		return reg
	}
	reg := globalBase + (1 << 13) + f.tempTop
	f.tempTop++
	return reg
}

func (f *File) FreeTemp(reg int) {
	delete(f.regTypes, reg)
	delete(f.residency, reg)
	f.tempFree = append(f.tempFree, reg)
}

// FrameWatermark and TempWatermark expose the current allocation high-water
// mark as an absolute register index, one past the highest index the
// allocator has ever handed out in that range. A function's own frame/temp
// registers occupy [before, after) in these terms across its own
// compilation (spec §4.9's recursion-safety note: a compiled function's
// register window is exactly what the VM must save/restore around a
// recursive re-entry into that same function, since register.File's index
// space is shared and absolute across the whole module compilation rather
// than rebased per call).
func (f *File) FrameWatermark() int { return globalBase + f.frameTop }
func (f *File) TempWatermark() int  { return globalBase + (1 << 13) + f.tempTop }

// ---------------------------------------------------------------------------
// Typed shadow banks
// ---------------------------------------------------------------------------

func (f *File) SetI32(reg int, v int32) { f.banks.i32[reg] = v; f.regTypes[reg] = BankI32 }
func (f *File) SetI64(reg int, v int64) { f.banks.i64[reg] = v; f.regTypes[reg] = BankI64 }
func (f *File) SetU32(reg int, v uint32) { f.banks.u32[reg] = v; f.regTypes[reg] = BankU32 }
func (f *File) SetU64(reg int, v uint64) { f.banks.u64[reg] = v; f.regTypes[reg] = BankU64 }
func (f *File) SetF64(reg int, v float64) { f.banks.f64[reg] = v; f.regTypes[reg] = BankF64 }
func (f *File) SetBool(reg int, v bool)  { f.banks.bl[reg] = v; f.regTypes[reg] = BankBool }

func (f *File) GetI32(reg int) int32   { return f.banks.i32[reg] }
func (f *File) GetI64(reg int) int64   { return f.banks.i64[reg] }
func (f *File) GetU32(reg int) uint32  { return f.banks.u32[reg] }
func (f *File) GetU64(reg int) uint64  { return f.banks.u64[reg] }
func (f *File) GetF64(reg int) float64 { return f.banks.f64[reg] }
func (f *File) GetBool(reg int) bool   { return f.banks.bl[reg] }

// AuthoritativeBank reports which typed bank, if any, currently holds the
// authoritative value for reg.
func (f *File) AuthoritativeBank(reg int) Bank {
	if b, ok := f.regTypes[reg]; ok {
		return b
	}
	return BankNone
}

// PinResidency marks reg as resident in bank for the duration of a region
// (e.g. a fused loop body), so dispatch can bypass boxing (spec §4.4/§4.6.1).
func (f *File) PinResidency(reg int, bank Bank) { f.residency[reg] = bank }

// ClearResidency removes a residency hint, e.g. on loop exit.
func (f *File) ClearResidency(reg int) { delete(f.residency, reg) }

func (f *File) Residency(reg int) Bank {
	if b, ok := f.residency[reg]; ok {
		return b
	}
	return BankNone
}
