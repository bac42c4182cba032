// Package kalloc implements the scoped dynamic allocator and per-owner memory
// accounting described by the core: every allocation carries a Tag
// identifying its owner class, and the allocator keeps per-tag byte
// counters. Free space within each registered region is tracked with a
// bitmap over fixed-size cells, searched first-fit for a contiguous run.
package kalloc

import (
	"fmt"
	"sync"

	"github.com/boljen/go-bitmap"

	"github.com/devdnl/dnxcore/pkg/kernerr"
)

// cellSize is the smallest unit of allocation bookkeeping; all allocations
// are rounded up to a whole number of cells, which keeps the bitmap small
// without requiring byte-granular tracking.
const cellSize = 16

// TagKind identifies the class of entity that owns an allocation.
type TagKind int

const (
	TagKernel TagKind = iota
	TagModule
	TagFilesystem
	TagNetwork
	TagProgram
)

// Tag identifies the owner of an allocation for accounting purposes. Two
// tags are equal iff both Kind and ID match; the zero ID is valid for
// TagKernel, which has no sub-identity.
type Tag struct {
	Kind TagKind
	ID   uint32
}

func KernelTag() Tag              { return Tag{Kind: TagKernel} }
func ModuleTag(id uint32) Tag     { return Tag{Kind: TagModule, ID: id} }
func FilesystemTag(id uint32) Tag { return Tag{Kind: TagFilesystem, ID: id} }
func NetworkTag(id uint32) Tag    { return Tag{Kind: TagNetwork, ID: id} }
func ProgramTag(id uint32) Tag    { return Tag{Kind: TagProgram, ID: id} }

func (t Tag) String() string {
	switch t.Kind {
	case TagKernel:
		return "kernel"
	case TagModule:
		return fmt.Sprintf("module(%d)", t.ID)
	case TagFilesystem:
		return fmt.Sprintf("filesystem(%d)", t.ID)
	case TagNetwork:
		return fmt.Sprintf("network(%d)", t.ID)
	case TagProgram:
		return fmt.Sprintf("program(%d)", t.ID)
	default:
		return "unknown"
	}
}

// Handle identifies one live allocation. It carries no pointer; callers
// never see raw memory addresses, only this opaque token.
type Handle uint64

type region struct {
	name       string
	cells      bitmap.Bitmap
	data       []byte
	totalCells uint
}

type allocation struct {
	tag       Tag
	region    int
	startCell uint
	numCells  uint
	size      uint
}

// Allocator is the single, globally-mutexed heap accountant. The zero value
// is not usable; construct one with New.
type Allocator struct {
	mu          sync.Mutex
	regions     []*region
	allocations map[Handle]allocation
	nextHandle  Handle
	usage       map[Tag]uint64
	leaked      uint64
}

// New creates an allocator with a single region of size bytes, the static
// heap constructed at reset.
func New(size uint) *Allocator {
	a := &Allocator{
		allocations: make(map[Handle]allocation),
		usage:       make(map[Tag]uint64),
	}
	a.RegisterRegion("heap", size)
	return a
}

// RegisterRegion declares an extra memory region (for example, external
// SDRAM) that may subsequently back allocations. It returns the region's
// index, used internally only; callers address allocations by Tag and
// Handle, never by region.
func (a *Allocator) RegisterRegion(name string, size uint) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	totalCells := (size + cellSize - 1) / cellSize
	a.regions = append(a.regions, &region{
		name:       name,
		cells:      bitmap.New(int(totalCells)),
		data:       make([]byte, totalCells*cellSize),
		totalCells: totalCells,
	})
	return len(a.regions) - 1
}

func bytesToCells(size uint) uint {
	if size == 0 {
		return 1
	}
	return (size + cellSize - 1) / cellSize
}

// findRun looks for the first free run of count contiguous cells in region.
func findRun(r *region, count uint) (uint, bool) {
	runStart := uint(0)
	runLen := uint(0)
	for i := uint(0); i < r.totalCells; i++ {
		if r.cells.Get(int(i)) {
			runLen = 0
			continue
		}
		if runLen == 0 {
			runStart = i
		}
		runLen++
		if runLen == count {
			return runStart, true
		}
	}
	return 0, false
}

// Allocate returns a zero-initialized region of at least size bytes charged
// to tag. It fails with kernerr.OutOfMemory when no registered region has a
// large enough free run.
func (a *Allocator) Allocate(tag Tag, size uint) (Handle, []byte, kernerr.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	numCells := bytesToCells(size)
	for idx, r := range a.regions {
		start, ok := findRun(r, numCells)
		if !ok {
			continue
		}

		for i := uint(0); i < numCells; i++ {
			r.cells.Set(int(start+i), true)
		}
		offset := start * cellSize
		buf := r.data[offset : offset+numCells*cellSize]
		for i := range buf {
			buf[i] = 0
		}

		handle := a.nextHandle
		a.nextHandle++
		a.allocations[handle] = allocation{
			tag:       tag,
			region:    idx,
			startCell: start,
			numCells:  numCells,
			size:      size,
		}
		a.usage[tag] += uint64(size)
		return handle, buf[:size], nil
	}

	return 0, nil, kernerr.OutOfMemory.WithMessage(
		fmt.Sprintf("no %d-byte run available for %s", size, tag),
	)
}

// Reallocate resizes an allocation, preserving the lesser of the old and new
// sizes of bytes. The returned handle replaces handle, which is invalid
// after this call whether or not the region moved.
func (a *Allocator) Reallocate(tag Tag, handle Handle, newSize uint) (Handle, []byte, kernerr.Error) {
	a.mu.Lock()
	alloc, ok := a.allocations[handle]
	a.mu.Unlock()
	if !ok {
		return 0, nil, kernerr.BadHandle.WithMessage("reallocate: unknown handle")
	}
	if alloc.tag != tag {
		return 0, nil, kernerr.InvalidArgument.WithMessage("reallocate: tag does not match owner")
	}

	newHandle, newBuf, err := a.Allocate(tag, newSize)
	if err != nil {
		return 0, nil, err
	}

	a.mu.Lock()
	r := a.regions[alloc.region]
	oldOffset := alloc.startCell * cellSize
	oldBuf := r.data[oldOffset : oldOffset+alloc.size]
	n := len(oldBuf)
	if len(newBuf) < n {
		n = len(newBuf)
	}
	copy(newBuf[:n], oldBuf[:n])
	a.mu.Unlock()

	if err := a.Free(tag, handle); err != nil {
		return 0, nil, err
	}

	return newHandle, newBuf, nil
}

// Free releases the region backing handle. If tag does not match the tag
// recorded at allocation, the call fails with kernerr.InvalidArgument; a
// caller that ignores the error is tracked as a leak in the diagnostic
// counter rather than corrupting another tag's accounting.
func (a *Allocator) Free(tag Tag, handle Handle) kernerr.Error {
	a.mu.Lock()
	defer a.mu.Unlock()

	alloc, ok := a.allocations[handle]
	if !ok {
		return kernerr.BadHandle.WithMessage("free: unknown handle")
	}
	if alloc.tag != tag {
		a.leaked += uint64(alloc.size)
		return kernerr.InvalidArgument.WithMessage(
			fmt.Sprintf("free: handle owned by %s, not %s", alloc.tag, tag),
		)
	}

	r := a.regions[alloc.region]
	for i := uint(0); i < alloc.numCells; i++ {
		r.cells.Set(int(alloc.startCell+i), false)
	}
	a.usage[tag] -= uint64(alloc.size)
	delete(a.allocations, handle)
	return nil
}

// Usage returns the current live byte count charged to tag.
func (a *Allocator) Usage(tag Tag) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage[tag]
}

// LeakedBytes returns the running total of bytes freed with a mismatched
// tag; these are never reclaimed by Free and only surface here.
func (a *Allocator) LeakedBytes() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.leaked
}

// TotalLiveBytes returns the sum of all per-tag counters, which must equal
// the live heap bytes.
func (a *Allocator) TotalLiveBytes() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total uint64
	for _, v := range a.usage {
		total += v
	}
	return total
}
