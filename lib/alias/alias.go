// Package alias encodes classic alias records: the opaque filesystem
// references Finder resolves independently of absolute path changes. A record
// is embedded in a directory's icon-view settings to point at the background
// image on the mounted volume.
package alias

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf16"
)

// Target kinds.
const (
	KindFile   = 0
	KindFolder = 1
)

const (
	recordVersion   = 2
	volumeSignature = "H+"
	volumeTypeOther = 5

	headerSize = 150

	// Classic Mac timestamps count seconds from 1904-01-01 UTC.
	macEpochOffset = 2082844800
)

// Extra field tags appended after the fixed header.
const (
	fieldParentName   = 0
	fieldUnicodeName  = 14
	fieldUnicodeVol   = 15
	fieldPosixPath    = 18
	fieldPosixVolPath = 19
	fieldEnd          = -1
)

var ErrOutsideVolume = errors.New("target path is outside the volume root")

// Info holds everything needed to encode an alias record.
type Info struct {
	Kind            uint16
	VolumeName      string
	VolumeCreated   time.Time
	ParentName      string
	TargetName      string
	TargetCreated   time.Time
	VolumePosixPath string // e.g. /Volumes/MyApp
	TargetPosixPath string // volume-relative, leading slash
}

// New describes the file at target on the volume mounted at volumeRoot. The
// target must exist; callers treat any failure as "no alias".
func New(volumeRoot, volumeName, target string) (*Info, error) {
	fi, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat alias target: %w", err)
	}

	rel, err := filepath.Rel(volumeRoot, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideVolume, target)
	}
	rel = filepath.ToSlash(rel)

	kind := uint16(KindFile)
	if fi.IsDir() {
		kind = KindFolder
	}

	parent := path.Base(path.Dir("/" + rel))
	if parent == "/" || parent == "." {
		parent = volumeName
	}

	return &Info{
		Kind:            kind,
		VolumeName:      volumeName,
		VolumeCreated:   fi.ModTime(),
		ParentName:      parent,
		TargetName:      path.Base(rel),
		TargetCreated:   fi.ModTime(),
		VolumePosixPath: filepath.ToSlash(volumeRoot),
		TargetPosixPath: "/" + rel,
	}, nil
}

// Encode produces the alias record blob: the 150-byte fixed header followed
// by tagged extra fields and a terminator, with the total length patched into
// the header.
func (i *Info) Encode() ([]byte, error) {
	if i.TargetName == "" {
		return nil, errors.New("alias target has no name")
	}

	var b bytes.Buffer

	writeU16 := func(v uint16) { binary.Write(&b, binary.BigEndian, v) }
	writeU32 := func(v uint32) { binary.Write(&b, binary.BigEndian, v) }

	b.Write(make([]byte, 4)) // application info
	writeU16(0)              // record size, patched below
	writeU16(recordVersion)
	writeU16(i.Kind)
	writePascal(&b, i.VolumeName, 27)
	writeU32(macTimestamp(i.VolumeCreated))
	b.WriteString(volumeSignature)
	writeU16(volumeTypeOther)
	writeU32(0) // parent directory ID unknown
	writePascal(&b, i.TargetName, 63)
	writeU32(0) // target CNID unknown
	writeU32(macTimestamp(i.TargetCreated))
	b.Write(make([]byte, 8))    // type and creator codes
	writeU16(0xffff)            // nlvl from: -1
	writeU16(0xffff)            // nlvl to: -1
	writeU32(0)                 // volume attributes
	writeU16(0)                 // volume filesystem ID
	b.Write(make([]byte, 10))   // reserved
	if b.Len() != headerSize {
		return nil, fmt.Errorf("alias header is %d bytes, want %d", b.Len(), headerSize)
	}

	writeField(&b, fieldParentName, []byte(i.ParentName))
	writeField(&b, fieldUnicodeName, utf16Field(i.TargetName))
	writeField(&b, fieldUnicodeVol, utf16Field(i.VolumeName))
	writeField(&b, fieldPosixPath, []byte(i.TargetPosixPath))
	writeField(&b, fieldPosixVolPath, []byte(i.VolumePosixPath))
	writeField(&b, fieldEnd, nil)

	data := b.Bytes()
	binary.BigEndian.PutUint16(data[4:], uint16(len(data)))
	return data, nil
}

// writePascal writes a length-prefixed string into a fixed-width field,
// truncating to max bytes.
func writePascal(b *bytes.Buffer, s string, max int) {
	raw := []byte(s)
	if len(raw) > max {
		raw = raw[:max]
	}
	b.WriteByte(byte(len(raw)))
	b.Write(raw)
	b.Write(make([]byte, max-len(raw)))
}

// writeField writes one tagged extra field, padded to even length.
func writeField(b *bytes.Buffer, tag int, data []byte) {
	binary.Write(b, binary.BigEndian, int16(tag))
	binary.Write(b, binary.BigEndian, uint16(len(data)))
	b.Write(data)
	if len(data)%2 == 1 {
		b.WriteByte(0)
	}
}

// utf16Field encodes a string as a character count followed by UTF-16BE.
func utf16Field(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2+2*len(units))
	binary.BigEndian.PutUint16(out, uint16(len(units)))
	for i, u := range units {
		binary.BigEndian.PutUint16(out[2+2*i:], u)
	}
	return out
}

func macTimestamp(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	return uint32(t.Unix() + macEpochOffset)
}
