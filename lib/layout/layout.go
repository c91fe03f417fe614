// Package layout translates a declaration into the metadata records Finder
// needs to render the volume: one icon placement per content item, the window
// geometry, and the icon-view parameters.
package layout

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/dmgforge/dmgforge/lib/declaration"
	"github.com/dmgforge/dmgforge/lib/dsstore"
)

// ReservedLicenseName is deliberately left unplaced so Finder auto-arranges
// licensing content. The match is case-sensitive.
const ReservedLicenseName = "license"

// Entries builds the record set for the declaration. backgroundAlias may be
// nil when no background image could be resolved. Entry construction is
// best-effort: a record that cannot be built is skipped and reported, since a
// degraded layout beats a failed build.
func Entries(decl *declaration.Declaration, backgroundAlias []byte) ([]dsstore.Record, []error) {
	var notes []error

	records := lo.FilterMap(decl.Contents, func(item declaration.ContentItem, i int) (dsstore.Record, bool) {
		name, err := item.DisplayName()
		if err != nil {
			notes = append(notes, fmt.Errorf("contents[%d]: %w", i, err))
			return dsstore.Record{}, false
		}
		if name == ReservedLicenseName {
			return dsstore.Record{}, false
		}
		return dsstore.IconLocation(name, item.X, item.Y), true
	})

	if rec, err := dsstore.WindowSettings(decl.Window.Size.Width, decl.Window.Size.Height); err != nil {
		notes = append(notes, fmt.Errorf("window settings: %w", err))
	} else {
		records = append(records, rec)
	}

	if rec, err := dsstore.IconViewSettings(decl.IconSize, backgroundAlias); err != nil {
		notes = append(notes, fmt.Errorf("icon view settings: %w", err))
	} else {
		records = append(records, rec)
	}

	return records, notes
}
