// Package heap provides the canonical-singleton factory the lowering pass
// embeds references from, together with a simulated heap that lets tests and
// the CLI execute lowered graphs. The pass itself only ever reads addresses
// out of the factory; the mutable side exists for evaluation.
package heap

import (
	"encoding/binary"
	"fmt"
	"sort"

	"smelt/internal/graph"
	"smelt/internal/layout"
	"smelt/internal/target"
)

// Ref is a tagged heap reference (address with the heap tag bit set).
type Ref uint64

const baseAddress = 0x10000

type span struct {
	base uint64
	data []byte
}

// Heap is a flat object store addressed the way lowered code addresses it:
// untagged base plus byte offset.
type Heap struct {
	cfg   target.Config
	order binary.ByteOrder
	spans []span
	next  uint64

	factory *Factory
}

// New creates a heap for the given target and populates the canonical
// singletons. Only the 64-bit object model is simulated.
func New(cfg target.Config) *Heap {
	if !cfg.Is64() {
		panic("heap: only 64-bit targets are simulated")
	}
	var order binary.ByteOrder = binary.LittleEndian
	if cfg.ByteOrder == target.BigEndian {
		order = binary.BigEndian
	}
	h := &Heap{cfg: cfg, order: order, next: baseAddress}
	newFactory(h)
	return h
}

// Factory exposes the canonical singleton references.
func (h *Heap) Factory() *Factory { return h.factory }

// Target returns the configuration the heap was built for.
func (h *Heap) Target() target.Config { return h.cfg }

// ObjectCount reports how many objects have been allocated, singletons
// included. Tests use deltas to assert allocation-free fast paths.
func (h *Heap) ObjectCount() int { return len(h.spans) }

// SmiTag encodes an inline small integer for this heap's target.
func (h *Heap) SmiTag(v int64) uint64 {
	return uint64(v << h.cfg.SmiShift())
}

// SmiUntag decodes an inline small integer word.
func (h *Heap) SmiUntag(w uint64) int64 {
	return int64(w) >> h.cfg.SmiShift()
}

// IsSmi reports whether a tagged word is an inline small integer.
func (h *Heap) IsSmi(w uint64) bool {
	return w&layout.SmiTagMask == layout.SmiTag
}

func (h *Heap) allocRaw(size uint64) Ref {
	if size == 0 {
		size = layout.ObjectAlignment
	}
	aligned := uint64(layout.RoundUpObjectSize(int64(size)))
	base := h.next
	h.next += aligned
	h.spans = append(h.spans, span{base: base, data: make([]byte, aligned)})
	return Ref(base | layout.HeapObjectTag)
}

func (h *Heap) find(addr uint64, size int) ([]byte, error) {
	i := sort.Search(len(h.spans), func(i int) bool {
		return h.spans[i].base > addr
	})
	if i == 0 {
		return nil, fmt.Errorf("heap: access to unmapped address %#x", addr)
	}
	s := h.spans[i-1]
	off := addr - s.base
	if off+uint64(size) > uint64(len(s.data)) {
		return nil, fmt.Errorf("heap: out-of-bounds access at %#x", addr)
	}
	return s.data[off : off+uint64(size)], nil
}

func repSize(rep graph.MemoryRep) int {
	switch rep {
	case graph.MemWord8:
		return 1
	case graph.MemWord16:
		return 2
	case graph.MemWord32:
		return 4
	default:
		return 8
	}
}

// Allocate implements graph.Memory.
func (h *Heap) Allocate(size uint64, hint graph.AllocationHint) (uint64, error) {
	_ = hint // generation placement is the real allocator's concern
	if size == 0 || size > 1<<30 {
		return 0, fmt.Errorf("heap: implausible allocation size %d", size)
	}
	return uint64(h.allocRaw(size)), nil
}

// Load implements graph.Memory. Sub-word loads zero-extend.
func (h *Heap) Load(addr uint64, rep graph.MemoryRep) (uint64, error) {
	buf, err := h.find(addr, repSize(rep))
	if err != nil {
		return 0, err
	}
	switch rep {
	case graph.MemWord8:
		return uint64(buf[0]), nil
	case graph.MemWord16:
		return uint64(h.order.Uint16(buf)), nil
	case graph.MemWord32:
		return uint64(h.order.Uint32(buf)), nil
	default:
		return h.order.Uint64(buf), nil
	}
}

// Store implements graph.Memory.
func (h *Heap) Store(addr uint64, bits uint64, rep graph.MemoryRep) error {
	buf, err := h.find(addr, repSize(rep))
	if err != nil {
		return err
	}
	switch rep {
	case graph.MemWord8:
		buf[0] = byte(bits)
	case graph.MemWord16:
		h.order.PutUint16(buf, uint16(bits))
	case graph.MemWord32:
		h.order.PutUint32(buf, uint32(bits))
	default:
		h.order.PutUint64(buf, bits)
	}
	return nil
}

// Builtin implements graph.Memory: the external calls lowered code defers to.
func (h *Heap) Builtin(b graph.Builtin, args []uint64) (uint64, error) {
	switch b {
	case graph.BuiltinStringToArrayIndex:
		if len(args) != 1 {
			return 0, fmt.Errorf("heap: %s takes 1 argument", b)
		}
		return uint64(h.stringToArrayIndex(Ref(args[0]))), nil
	}
	return 0, fmt.Errorf("heap: unknown builtin %v", b)
}

// stringToArrayIndex is the locale-independent numeric-string primitive.
// Returns -1 when the string is not a canonical array index.
func (h *Heap) stringToArrayIndex(s Ref) int64 {
	str, ok := h.StringContent(s)
	if !ok || len(str) == 0 {
		return -1
	}
	if len(str) > 1 && str[0] == '0' {
		return -1
	}
	var index int64
	for _, r := range str {
		if r < '0' || r > '9' {
			return -1
		}
		index = index*10 + int64(r-'0')
		if index > 1<<31-1 {
			return -1
		}
	}
	return index
}

// Raw field access helpers used by the factory and by tests.

func (h *Heap) loadField(ref Ref, acc layout.FieldAccess) uint64 {
	bits, err := h.Load(uint64(ref)-layout.HeapObjectTag+uint64(acc.Offset), acc.Rep)
	if err != nil {
		panic(err)
	}
	return bits
}

func (h *Heap) storeField(ref Ref, acc layout.FieldAccess, bits uint64) {
	if err := h.Store(uint64(ref)-layout.HeapObjectTag+uint64(acc.Offset), bits, acc.Rep); err != nil {
		panic(err)
	}
}

func (h *Heap) storeAt(ref Ref, offset int64, bits uint64, rep graph.MemoryRep) {
	if err := h.Store(uint64(ref)-layout.HeapObjectTag+uint64(offset), bits, rep); err != nil {
		panic(err)
	}
}

func (h *Heap) loadAt(ref Ref, offset int64, rep graph.MemoryRep) uint64 {
	bits, err := h.Load(uint64(ref)-layout.HeapObjectTag+uint64(offset), rep)
	if err != nil {
		panic(err)
	}
	return bits
}

// MapOf returns the type descriptor reference of a heap object.
func (h *Heap) MapOf(ref Ref) Ref {
	return Ref(h.loadField(ref, layout.FieldMap()))
}

// InstanceTypeOf returns the instance-type code of a heap object.
func (h *Heap) InstanceTypeOf(ref Ref) uint16 {
	return uint16(h.loadField(h.MapOf(ref), layout.FieldMapInstanceType()))
}
