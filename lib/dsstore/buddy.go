package dsstore

import (
	"fmt"
	"math/bits"
	"sort"
)

// The container's allocator manages a 2^31-byte address space in power-of-two
// "buddy" blocks. Offsets are relative to the 4-byte file prefix, and a block
// address packs the offset with log2 of its size in the low five bits.
const (
	addressSpaceWidth = 31
	minBlockWidth     = 5 // 32 bytes, also the header block size
)

type blockAddr uint32

func makeAddr(offset uint32, width uint8) blockAddr {
	return blockAddr(offset | uint32(width))
}

func (a blockAddr) offset() uint32 { return uint32(a) &^ 0x1f }
func (a blockAddr) size() uint32   { return 1 << (uint32(a) & 0x1f) }

// allocator hands out buddy blocks from a fresh address space. It only
// supports the write path: blocks are never freed individually, and the
// remaining free lists are serialized into the bookkeeping block so readers
// see a consistent allocation state.
type allocator struct {
	free [32][]uint32 // free[w] holds offsets of free 2^w blocks, ascending
}

func newAllocator() *allocator {
	a := &allocator{}
	a.free[addressSpaceWidth] = []uint32{0}
	return a
}

// alloc reserves a block of at least size bytes and returns its address.
func (a *allocator) alloc(size uint32) (blockAddr, error) {
	width := uint8(minBlockWidth)
	if size > 1<<minBlockWidth {
		width = uint8(bits.Len32(size - 1))
	}

	// Find the smallest free block that fits.
	from := -1
	for w := int(width); w <= addressSpaceWidth; w++ {
		if len(a.free[w]) > 0 {
			from = w
			break
		}
	}
	if from < 0 {
		return 0, fmt.Errorf("allocate %d bytes: address space exhausted", size)
	}

	offset := a.free[from][0]
	a.free[from] = a.free[from][1:]

	// Split down, returning the upper buddy at each level.
	for w := from; w > int(width); w-- {
		half := uint32(1) << (w - 1)
		a.free[w-1] = append(a.free[w-1], offset+half)
		sort.Slice(a.free[w-1], func(i, j int) bool { return a.free[w-1][i] < a.free[w-1][j] })
	}

	return makeAddr(offset, width), nil
}
