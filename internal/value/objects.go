package value

import "orus/internal/rope"

// Int64Obj and UInt64Obj box the 64-bit integer kinds that do not fit in the
// small-int NaN-box payload.
type (
	Int64Obj struct {
		Object
		Value int64
	}

	UInt64Obj struct {
		Object
		Value uint64
	}
)

// StringObj carries an owned materialized byte view plus the Rope describing
// its logical value (spec §3/§4.2). Chars is lazily populated by
// EnsureChars (the spec's string_get_chars).
type StringObj struct {
	Object
	Rope  *rope.Rope
	chars []byte
}

func NewStringFromRope(r *rope.Rope) *StringObj {
	return &StringObj{Object: Object{Type: ObjString}, Rope: r}
}

// EnsureChars flattens the rope once and rewrites it to a non-owning Leaf
// over the materialized buffer, matching spec §4.2's string_get_chars
// idempotence contract: identity of the StringObj is preserved, only the
// rope's internal representation changes.
func (s *StringObj) EnsureChars() []byte {
	if s.chars != nil {
		return s.chars
	}
	flat := s.Rope.Flatten()
	s.chars = flat
	s.Rope = rope.NewBorrowedLeaf(flat)
	return s.chars
}

func (s *StringObj) Len() int { return s.Rope.Len() }

// ByteBufferObj is the Bytes(ObjByteBuffer) heap kind.
type ByteBufferObj struct {
	Object
	Data []byte
}

// ArrayObj is a contiguous, length-typed element vector; it backs ordinary
// arrays and enum payloads alike (spec §3).
type ArrayObj struct {
	Object
	Elements []Value
}

func (a *ArrayObj) Len() int { return len(a.Elements) }

// EnumObj is {type_name, variant_name, variant_index, payload}.
type EnumObj struct {
	Object
	TypeName     string
	VariantName  string
	VariantIndex int
	Payload      *ArrayObj // nil when the variant carries no payload
}

// ErrorType is the taxonomy from spec §7.
type ErrorType uint8

const (
	ErrType ErrorType = iota
	ErrValue
	ErrName
	ErrImport
	ErrRuntime
	ErrSyntax
	ErrFeature
	ErrRedefinition
)

// SrcLocation is a source position, shared between ErrorObj and diagnostics.
type SrcLocation struct {
	File   string
	Line   int
	Column int
}

// ErrorObj is {kind, message, location} (spec §3).
type ErrorObj struct {
	Object
	Kind     ErrorType
	Message  string
	Location SrcLocation
}

// RangeIteratorObj drives `for x in a..b` / `a..=b`.
type RangeIteratorObj struct {
	Object
	Current  int64
	Limit    int64
	Step     int64
	Inclusive bool
	done     bool
}

// ArrayIteratorObj drives `for x in someArray`.
type ArrayIteratorObj struct {
	Object
	Array *ArrayObj
	Index int
}

// FileObj wraps a host file handle. "owned" means this ObjFile opened the
// descriptor and must close it; "borrowed" means it was handed one (e.g.
// stdin/stdout) it must not close.
type FileObj struct {
	Object
	Path    string
	Handle  uintptr
	Owned   bool
	closed  bool
	backing interface {
		Read([]byte) (int, error)
		Write([]byte) (int, error)
		Close() error
	}
}

func (f *FileObj) Closed() bool { return f.closed }

func (f *FileObj) MarkClosed() { f.closed = true }

func (f *FileObj) SetBacking(b interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
	Close() error
}) {
	f.backing = b
}

func (f *FileObj) Read(p []byte) (int, error)  { return f.backing.Read(p) }
func (f *FileObj) Write(p []byte) (int, error) { return f.backing.Write(p) }
func (f *FileObj) CloseHandle() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if f.backing == nil {
		return nil
	}
	return f.backing.Close()
}

// FunctionRef boxes the int index into the VM's function table that spec §3
// names as the Function variant's payload.
type FunctionRef struct {
	Object
	Index int
}

func BoxFunction(index int) Value {
	obj := &FunctionRef{Object: Object{Type: ObjFunction}, Index: index}
	return BoxObject(&obj.Object)
}

// RaiseIntrinsicIndex is the sentinel FunctionRef.Index the host binds to the
// "__raise__" global slot (spec §5.1's builtin intrinsic registry): `throw`
// lowers to an ordinary OP_CALL_R against this slot rather than its own
// opcode, and Dispatch recognizes this index as "raise the argument" instead
// of indexing into the function table.
const RaiseIntrinsicIndex = -1

// UpvalueObj: {location, closed} — open while location points into a live
// register window, closed once graduated (spec §3 ObjUpvalue).
type UpvalueObj struct {
	Object
	Location *Value // points at an open register slot, or &Closed once closed
	Closed   Value
	open     bool
	Next     *UpvalueObj // linked list of open upvalues, ordered by slot address
	Slot     int         // absolute register slot this upvalue observes while open
}

func NewOpenUpvalue(slot int, location *Value) *UpvalueObj {
	return &UpvalueObj{
		Object:   Object{Type: ObjUpvalue},
		Location: location,
		open:     true,
		Slot:     slot,
	}
}

func (u *UpvalueObj) IsOpen() bool { return u.open }

// Close graduates the upvalue: the current slot value is copied into the
// upvalue's own storage and Location is relinked to point at it.
func (u *UpvalueObj) Close() {
	if !u.open {
		return
	}
	u.Closed = *u.Location
	u.Location = &u.Closed
	u.open = false
}

// ClosureObj is {function_index, upvalues} (spec §3).
type ClosureObj struct {
	Object
	FunctionIndex int
	Upvalues      []*UpvalueObj
}

// NativeFnObj is a host-provided builtin (spec §5.1's fixed intrinsic
// registry: len, print, type_of). Grounded on the teacher's NativeFnObj
// (vmregister/value.go): {name, arity, function}, called the same way a
// FunctionRef/ClosureObj is but never indexes into the compiled function
// table.
type NativeFnObj struct {
	Object
	Name     string
	Arity    int
	Function func([]Value) (Value, error)
}

func BoxNativeFn(n *NativeFnObj) Value {
	n.Type = ObjNativeFn
	return BoxObject(&n.Object)
}

func BoxClosure(c *ClosureObj) Value {
	c.Type = ObjClosure
	return BoxObject(&c.Object)
}

func BoxArray(a *ArrayObj) Value {
	a.Type = ObjArray
	return BoxObject(&a.Object)
}

func BoxString(s *StringObj) Value {
	s.Type = ObjString
	return BoxObject(&s.Object)
}

func BoxBytes(b *ByteBufferObj) Value {
	b.Type = ObjBytes
	return BoxObject(&b.Object)
}

func BoxEnum(e *EnumObj) Value {
	e.Type = ObjEnum
	return BoxObject(&e.Object)
}

func BoxError(e *ErrorObj) Value {
	e.Type = ObjError
	return BoxObject(&e.Object)
}

func BoxRangeIterator(r *RangeIteratorObj) Value {
	r.Type = ObjRangeIterator
	return BoxObject(&r.Object)
}

func BoxArrayIterator(a *ArrayIteratorObj) Value {
	a.Type = ObjArrayIterator
	return BoxObject(&a.Object)
}

func BoxFile(f *FileObj) Value {
	f.Type = ObjFile
	return BoxObject(&f.Object)
}

// Next advances a RangeIteratorObj, returning (value, hasValue). Mirrors
// OP_ITER_NEXT_R's contract in spec §4.8: past exhaustion dst is left
// untouched and hasValue is false.
func (r *RangeIteratorObj) Next() (int64, bool) {
	if r.done {
		return 0, false
	}
	cur := r.Current
	if r.Step > 0 {
		if r.Inclusive {
			if cur > r.Limit {
				r.done = true
				return 0, false
			}
		} else if cur >= r.Limit {
			r.done = true
			return 0, false
		}
	} else if r.Step < 0 {
		if r.Inclusive {
			if cur < r.Limit {
				r.done = true
				return 0, false
			}
		} else if cur <= r.Limit {
			r.done = true
			return 0, false
		}
	} else {
		r.done = true
		return 0, false
	}
	r.Current += r.Step
	return cur, true
}

// Next advances an ArrayIteratorObj, returning (value, hasValue).
func (a *ArrayIteratorObj) Next() (Value, bool) {
	if a.Index >= len(a.Array.Elements) {
		return 0, false
	}
	v := a.Array.Elements[a.Index]
	a.Index++
	return v, true
}
