package dsstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

// decodeContainer checks the header invariants and decodes the record set.
func decodeContainer(t *testing.T, data []byte) []Record {
	t.Helper()

	require.GreaterOrEqual(t, len(data), 36)
	require.Equal(t, uint32(1), binary.BigEndian.Uint32(data[0:]))
	require.Equal(t, magic, string(data[4:8]))
	require.Equal(t, binary.BigEndian.Uint32(data[8:]), binary.BigEndian.Uint32(data[16:]),
		"both bookkeeping offsets point at the same block")

	records, err := Decode(data)
	require.NoError(t, err)
	return records
}

func TestEncodeRoundTrip(t *testing.T) {
	window, err := WindowSettings(400, 300)
	require.NoError(t, err)
	view, err := IconViewSettings(96, nil)
	require.NoError(t, err)

	records := []Record{
		IconLocation("MyApp.app", 100, 100),
		IconLocation("Applications", 300, 100),
		window,
		view,
	}

	data, err := Encode(records)
	require.NoError(t, err)

	decoded := decodeContainer(t, data)
	require.Len(t, decoded, 4)

	// Records come back sorted: the directory's own entries first.
	require.Equal(t, selfFilename, decoded[0].Filename)
	require.Equal(t, idBrowserWindow, decoded[0].ID)
	require.Equal(t, selfFilename, decoded[1].Filename)
	require.Equal(t, idIconViewSettings, decoded[1].ID)
	require.Equal(t, "Applications", decoded[2].Filename)
	require.Equal(t, "MyApp.app", decoded[3].Filename)

	require.Equal(t, uint32(300), binary.BigEndian.Uint32(decoded[2].Data[0:]))
	require.Equal(t, uint32(100), binary.BigEndian.Uint32(decoded[2].Data[4:]))
	require.Equal(t, uint32(0xffffffff), binary.BigEndian.Uint32(decoded[2].Data[8:]))
}

func TestIconLocationPayload(t *testing.T) {
	rec := IconLocation("Notes.app", 12, 34)
	require.Equal(t, idIconLocation, rec.ID)
	require.Len(t, rec.Data, 16)
	require.Equal(t, uint32(12), binary.BigEndian.Uint32(rec.Data[0:]))
	require.Equal(t, uint32(34), binary.BigEndian.Uint32(rec.Data[4:]))
	require.Equal(t, uint32(0xffff0000), binary.BigEndian.Uint32(rec.Data[12:]))
}

func TestWindowSettingsPayload(t *testing.T) {
	rec, err := WindowSettings(640, 480)
	require.NoError(t, err)

	var settings map[string]interface{}
	_, err = plist.Unmarshal(rec.Data, &settings)
	require.NoError(t, err)
	require.Equal(t, "{{100, 100}, {640, 480}}", settings["WindowBounds"])
	require.Equal(t, false, settings["ShowToolbar"])
}

func TestIconViewSettingsPayload(t *testing.T) {
	aliasBlob := []byte{0x01, 0x02, 0x03, 0x04}

	rec, err := IconViewSettings(128, aliasBlob)
	require.NoError(t, err)

	var settings map[string]interface{}
	_, err = plist.Unmarshal(rec.Data, &settings)
	require.NoError(t, err)
	require.Equal(t, 128.0, settings["iconSize"])
	require.Equal(t, uint64(2), settings["backgroundType"])
	require.Equal(t, aliasBlob, settings["backgroundImageAlias"])

	rec, err = IconViewSettings(96, nil)
	require.NoError(t, err)
	settings = nil
	_, err = plist.Unmarshal(rec.Data, &settings)
	require.NoError(t, err)
	require.Equal(t, 96.0, settings["iconSize"])
	require.Equal(t, uint64(0), settings["backgroundType"])
	require.NotContains(t, settings, "backgroundImageAlias")
}

func TestEncodeTooLarge(t *testing.T) {
	var records []Record
	for i := 0; i < 200; i++ {
		records = append(records, IconLocation(fmt.Sprintf("some-rather-long-item-name-%04d.app", i), 10, 10))
	}

	_, err := Encode(records)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".DS_Store")

	window, err := WindowSettings(400, 300)
	require.NoError(t, err)
	require.NoError(t, Write(path, []Record{IconLocation("a", 1, 2), window}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	decoded := decodeContainer(t, data)
	require.Len(t, decoded, 2)
}

func TestAllocatorLayout(t *testing.T) {
	a := newAllocator()

	header, err := a.alloc(32)
	require.NoError(t, err)
	require.Equal(t, uint32(0), header.offset())
	require.Equal(t, uint32(32), header.size())

	root, err := a.alloc(rootBlockSize)
	require.NoError(t, err)
	require.Equal(t, uint32(2048), root.offset())

	super, err := a.alloc(superBlockSize)
	require.NoError(t, err)
	require.Equal(t, uint32(32), super.offset())

	node, err := a.alloc(nodePageSize)
	require.NoError(t, err)
	require.Equal(t, uint32(4096), node.offset())

	// Every remaining free block must be aligned to its own size.
	for w := 0; w < 32; w++ {
		for _, off := range a.free[w] {
			require.Zero(t, off%(1<<w), "free block %d at %d misaligned", w, off)
		}
	}
}
