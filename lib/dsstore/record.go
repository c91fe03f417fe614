package dsstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"howett.net/plist"
)

// Record IDs understood by Finder that this writer emits.
const (
	idIconLocation     = "Iloc"
	idBrowserWindow    = "bwsp"
	idIconViewSettings = "icvp"
)

// Directory-level records (window geometry, icon view settings) are keyed
// under the containing directory's own name.
const selfFilename = "."

// Record is one entry in the container: a filename, a four-character record
// ID, and an opaque blob payload.
type Record struct {
	Filename string
	ID       string
	Data     []byte
}

// IconLocation places the named item at Finder coordinates (x, y).
func IconLocation(name string, x, y uint32) Record {
	data := make([]byte, 16)
	binary.BigEndian.PutUint32(data[0:], x)
	binary.BigEndian.PutUint32(data[4:], y)
	binary.BigEndian.PutUint32(data[8:], 0xffffffff)
	binary.BigEndian.PutUint32(data[12:], 0xffff0000)
	return Record{Filename: name, ID: idIconLocation, Data: data}
}

// WindowSettings describes the Finder window for the directory: a fixed
// origin and the declared width and height.
func WindowSettings(width, height uint32) (Record, error) {
	settings := map[string]interface{}{
		"WindowBounds":          fmt.Sprintf("{{100, 100}, {%d, %d}}", width, height),
		"ShowStatusBar":         false,
		"ShowToolbar":           false,
		"ShowTabView":           false,
		"ShowPathbar":           false,
		"ShowSidebar":           false,
		"ContainerShowSidebar":  false,
		"PreviewPaneVisibility": false,
		"SidebarWidth":          uint64(0),
	}
	data, err := plist.Marshal(settings, plist.BinaryFormat)
	if err != nil {
		return Record{}, fmt.Errorf("encode window settings: %w", err)
	}
	return Record{Filename: selfFilename, ID: idBrowserWindow, Data: data}, nil
}

// IconViewSettings describes the directory's icon view: icon size, grid
// parameters, and optionally a background image referenced by an alias blob.
func IconViewSettings(iconSize float64, backgroundAlias []byte) (Record, error) {
	settings := map[string]interface{}{
		"viewOptionsVersion": uint64(1),
		"iconSize":           iconSize,
		"gridOffsetX":        0.0,
		"gridOffsetY":        0.0,
		"gridSpacing":        100.0,
		"arrangeBy":          "none",
		"labelOnBottom":      true,
		"showIconPreview":    true,
		"showItemInfo":       false,
		"textSize":           12.0,
	}
	if backgroundAlias != nil {
		settings["backgroundType"] = uint64(2)
		settings["backgroundImageAlias"] = backgroundAlias
	} else {
		settings["backgroundType"] = uint64(0)
		settings["backgroundColorRed"] = 1.0
		settings["backgroundColorGreen"] = 1.0
		settings["backgroundColorBlue"] = 1.0
	}
	data, err := plist.Marshal(settings, plist.BinaryFormat)
	if err != nil {
		return Record{}, fmt.Errorf("encode icon view settings: %w", err)
	}
	return Record{Filename: selfFilename, ID: idIconViewSettings, Data: data}, nil
}

// encode appends the record's wire form: UTF-16BE filename with a character
// count, the record ID, the "blob" payload type, and the length-prefixed data.
func (r Record) encode(buf *bytes.Buffer) error {
	if len(r.ID) != 4 {
		return fmt.Errorf("record id %q: must be four characters", r.ID)
	}
	units := utf16.Encode([]rune(r.Filename))
	var num [4]byte
	binary.BigEndian.PutUint32(num[:], uint32(len(units)))
	buf.Write(num[:])
	for _, u := range units {
		buf.WriteByte(byte(u >> 8))
		buf.WriteByte(byte(u))
	}
	buf.WriteString(r.ID)
	buf.WriteString("blob")
	binary.BigEndian.PutUint32(num[:], uint32(len(r.Data)))
	buf.Write(num[:])
	buf.Write(r.Data)
	return nil
}

// sortRecords orders records the way Finder's reader expects: by filename,
// compared case-insensitively, then by record ID.
func sortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := strings.ToLower(records[i].Filename), strings.ToLower(records[j].Filename)
		if a != b {
			return a < b
		}
		return records[i].ID < records[j].ID
	})
}
