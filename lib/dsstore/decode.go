package dsstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

// Decode reads a container produced by Encode back into its record set.
// It understands exactly what this writer emits: a single-leaf tree of blob
// records. It exists for tooling and tests, not as a general reader.
func Decode(data []byte) ([]Record, error) {
	if len(data) < 36 || binary.BigEndian.Uint32(data) != 1 || string(data[4:8]) != magic {
		return nil, errors.New("not a buddy-allocated container")
	}
	rootOff := binary.BigEndian.Uint32(data[8:])
	rootSize := binary.BigEndian.Uint32(data[12:])
	if int(4+rootOff+rootSize) > len(data) {
		return nil, errors.New("bookkeeping block out of range")
	}
	root := data[4+rootOff : 4+rootOff+rootSize]

	numBlocks := binary.BigEndian.Uint32(root)
	addrs := make([]blockAddr, numBlocks)
	for i := range addrs {
		addrs[i] = blockAddr(binary.BigEndian.Uint32(root[8+4*i:]))
	}

	// Table of contents: locate the DSDB superblock.
	pos := 8 + 256*4
	tocCount := int(binary.BigEndian.Uint32(root[pos:]))
	pos += 4
	superID := uint32(0)
	found := false
	for i := 0; i < tocCount; i++ {
		nameLen := int(root[pos])
		name := string(root[pos+1 : pos+1+nameLen])
		id := binary.BigEndian.Uint32(root[pos+1+nameLen:])
		pos += 1 + nameLen + 4
		if name == "DSDB" {
			superID, found = id, true
		}
	}
	if !found {
		return nil, errors.New("no DSDB entry in table of contents")
	}
	if int(superID) >= len(addrs) {
		return nil, errors.New("superblock id out of range")
	}

	super := data[4+addrs[superID].offset():]
	nodeID := binary.BigEndian.Uint32(super)
	levels := binary.BigEndian.Uint32(super[4:])
	numRecords := binary.BigEndian.Uint32(super[8:])
	if levels != 0 {
		return nil, fmt.Errorf("unsupported tree depth %d", levels)
	}
	if int(nodeID) >= len(addrs) {
		return nil, errors.New("node id out of range")
	}

	node := data[4+addrs[nodeID].offset():]
	if binary.BigEndian.Uint32(node) != 0 {
		return nil, errors.New("root node is not a leaf")
	}
	if got := binary.BigEndian.Uint32(node[4:]); got != numRecords {
		return nil, fmt.Errorf("leaf holds %d records, superblock says %d", got, numRecords)
	}

	records := make([]Record, 0, numRecords)
	p := 8
	for i := uint32(0); i < numRecords; i++ {
		nameChars := int(binary.BigEndian.Uint32(node[p:]))
		p += 4
		units := make([]uint16, nameChars)
		for j := range units {
			units[j] = binary.BigEndian.Uint16(node[p+2*j:])
		}
		p += 2 * nameChars
		id := string(node[p : p+4])
		if typ := string(node[p+4 : p+8]); typ != "blob" {
			return nil, fmt.Errorf("record %q: unsupported payload type %q", id, typ)
		}
		dataLen := int(binary.BigEndian.Uint32(node[p+8:]))
		p += 12
		blob := append([]byte(nil), node[p:p+dataLen]...)
		p += dataLen
		records = append(records, Record{Filename: string(utf16.Decode(units)), ID: id, Data: blob})
	}
	return records, nil
}
