// Package dsstore writes the .DS_Store container Finder reads per-directory
// view state from: icon coordinates, window geometry, and icon-view settings.
//
// The container is a buddy-allocated block file ("Bud1") holding a B-tree of
// records. This writer produces a fresh single-leaf tree, which covers any
// realistic installer layout; it does not modify existing containers.
package dsstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"slices"
)

const (
	magic = "Bud1"

	// One tree node; a leaf this size fits well over fifty records.
	nodePageSize = 0x1000

	rootBlockSize  = 2048
	superBlockSize = 32

	// Block IDs within the bookkeeping table.
	rootBlockID  = 0
	superBlockID = 1
	nodeBlockID  = 2
)

// ErrTooLarge is returned when the record set exceeds a single tree node.
var ErrTooLarge = errors.New("record set does not fit a single tree node")

// Write encodes the records and writes the container to path, replacing any
// existing file.
func Write(path string, records []Record) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write container: %w", err)
	}
	return nil
}

// Encode builds a complete container image from the record set.
func Encode(records []Record) ([]byte, error) {
	recs := slices.Clone(records)
	sortRecords(recs)

	var body bytes.Buffer
	for _, r := range recs {
		if err := r.encode(&body); err != nil {
			return nil, err
		}
	}
	if 8+body.Len() > nodePageSize {
		return nil, fmt.Errorf("%w: %d records, %d bytes", ErrTooLarge, len(recs), body.Len())
	}

	a := newAllocator()

	// The 32 bytes at offset zero always hold the file header.
	headerAddr, err := a.alloc(32)
	if err != nil {
		return nil, err
	}
	if headerAddr.offset() != 0 {
		return nil, fmt.Errorf("header block allocated at %d", headerAddr.offset())
	}
	rootAddr, err := a.alloc(rootBlockSize)
	if err != nil {
		return nil, err
	}
	superAddr, err := a.alloc(superBlockSize)
	if err != nil {
		return nil, err
	}
	nodeAddr, err := a.alloc(nodePageSize)
	if err != nil {
		return nil, err
	}
	blockAddrs := []blockAddr{rootBlockID: rootAddr, superBlockID: superAddr, nodeBlockID: nodeAddr}

	end := uint32(0)
	for _, addr := range blockAddrs {
		if e := addr.offset() + addr.size(); e > end {
			end = e
		}
	}
	buf := make([]byte, 4+end)

	// File prefix and header block.
	binary.BigEndian.PutUint32(buf[0:], 1)
	copy(buf[4:], magic)
	binary.BigEndian.PutUint32(buf[8:], rootAddr.offset())
	binary.BigEndian.PutUint32(buf[12:], uint32(rootBlockSize))
	binary.BigEndian.PutUint32(buf[16:], rootAddr.offset())
	for i, v := range []uint32{0x100c, 0x87, 0x200b, 0} {
		binary.BigEndian.PutUint32(buf[20+4*i:], v)
	}

	writeBlock(buf, rootAddr, encodeRootBlock(blockAddrs, a))
	writeBlock(buf, superAddr, encodeSuperBlock(len(recs)))
	writeBlock(buf, nodeAddr, encodeLeafNode(len(recs), body.Bytes()))

	return buf, nil
}

func writeBlock(buf []byte, addr blockAddr, data []byte) {
	copy(buf[4+addr.offset():], data)
}

// encodeRootBlock serializes the bookkeeping block: the block address table
// (padded to 256 entries), the table of contents naming the superblock, and
// the allocator's 32 free lists.
func encodeRootBlock(blockAddrs []blockAddr, a *allocator) []byte {
	var b bytes.Buffer
	putU32 := func(v uint32) {
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], v)
		b.Write(tmp[:])
	}

	putU32(uint32(len(blockAddrs)))
	putU32(0)
	for _, addr := range blockAddrs {
		putU32(uint32(addr))
	}
	for i := len(blockAddrs); i < 256; i++ {
		putU32(0)
	}

	putU32(1)
	b.WriteByte(4)
	b.WriteString("DSDB")
	putU32(superBlockID)

	for w := 0; w < 32; w++ {
		putU32(uint32(len(a.free[w])))
		for _, off := range a.free[w] {
			putU32(off)
		}
	}
	return b.Bytes()
}

func encodeSuperBlock(numRecords int) []byte {
	data := make([]byte, 20)
	binary.BigEndian.PutUint32(data[0:], nodeBlockID)
	binary.BigEndian.PutUint32(data[4:], 0) // levels: single leaf
	binary.BigEndian.PutUint32(data[8:], uint32(numRecords))
	binary.BigEndian.PutUint32(data[12:], 1) // nodes
	binary.BigEndian.PutUint32(data[16:], nodePageSize)
	return data
}

func encodeLeafNode(numRecords int, body []byte) []byte {
	data := make([]byte, 8+len(body))
	binary.BigEndian.PutUint32(data[0:], 0) // leaf marker
	binary.BigEndian.PutUint32(data[4:], uint32(numRecords))
	copy(data[8:], body)
	return data
}
