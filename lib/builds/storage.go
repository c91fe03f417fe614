package builds

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmgforge/dmgforge/lib/paths"
)

// writeMetadata persists a build record atomically via temp file + rename.
func writeMetadata(p *paths.Paths, b *Build) error {
	if err := os.MkdirAll(p.BuildDir(b.ID), 0755); err != nil {
		return fmt.Errorf("create build directory: %w", err)
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	final := p.BuildMetadata(b.ID)
	temp := final + ".tmp"
	if err := os.WriteFile(temp, data, 0644); err != nil {
		return fmt.Errorf("write temp metadata: %w", err)
	}
	if err := os.Rename(temp, final); err != nil {
		os.Remove(temp)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

func readMetadata(p *paths.Paths, id string) (*Build, error) {
	data, err := os.ReadFile(p.BuildMetadata(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var b Build
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &b, nil
}

// listMetadata scans the builds directory; entries that fail to parse are
// skipped rather than failing the listing.
func listMetadata(p *paths.Paths) ([]*Build, error) {
	entries, err := os.ReadDir(p.BuildsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*Build{}, nil
		}
		return nil, fmt.Errorf("read builds directory: %w", err)
	}

	var out []*Build
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		b, err := readMetadata(p, entry.Name())
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func deleteBuild(p *paths.Paths, id string) error {
	dir := p.BuildDir(id)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("stat build directory: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove build directory: %w", err)
	}
	return nil
}
