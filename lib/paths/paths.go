// Package paths centralizes the daemon's data-directory layout.
package paths

import "path/filepath"

type Paths struct {
	dataDir string
}

func New(dataDir string) *Paths {
	return &Paths{dataDir: dataDir}
}

func (p *Paths) DataDir() string {
	return p.dataDir
}

// BuildsDir holds one directory per build job.
func (p *Paths) BuildsDir() string {
	return filepath.Join(p.dataDir, "builds")
}

func (p *Paths) BuildDir(id string) string {
	return filepath.Join(p.BuildsDir(), id)
}

func (p *Paths) BuildMetadata(id string) string {
	return filepath.Join(p.BuildDir(id), "metadata.json")
}

// BuildScratch is the per-job temp root handed to the builder, so concurrent
// jobs in one daemon process never share a staging name.
func (p *Paths) BuildScratch(id string) string {
	return filepath.Join(p.BuildDir(id), "scratch")
}

func (p *Paths) BuildImage(id, filename string) string {
	return filepath.Join(p.BuildDir(id), filename)
}
