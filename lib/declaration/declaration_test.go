package declaration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func validDeclaration() Declaration {
	return Declaration{
		Title:    "MyApp",
		IconSize: 80,
		Window:   Window{Size: WindowSize{Width: 640, Height: 480}},
		Contents: []ContentItem{
			{X: 192, Y: 344, Kind: KindFile, Path: "/build/MyApp.app"},
			{X: 448, Y: 344, Kind: KindLink, Path: "/Applications"},
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	decl := validDeclaration()
	require.NoError(t, decl.Validate())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Declaration)
		wantErr error
	}{
		{"missing title", func(d *Declaration) { d.Title = "" }, ErrMissingTitle},
		{"zero icon size", func(d *Declaration) { d.IconSize = 0 }, ErrInvalidIconSize},
		{"negative icon size", func(d *Declaration) { d.IconSize = -4 }, ErrInvalidIconSize},
		{"zero window width", func(d *Declaration) { d.Window.Size.Width = 0 }, ErrInvalidWindowSize},
		{"zero window height", func(d *Declaration) { d.Window.Size.Height = 0 }, ErrInvalidWindowSize},
		{"unknown kind", func(d *Declaration) { d.Contents[0].Kind = "folder" }, ErrInvalidKind},
		{"missing path", func(d *Declaration) { d.Contents[1].Path = "" }, ErrMissingPath},
		{"unresolvable name", func(d *Declaration) { d.Contents[0].Path = "/"; d.Contents[0].Name = "" }, ErrUnresolvableName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decl := validDeclaration()
			tt.mutate(&decl)
			require.ErrorIs(t, decl.Validate(), tt.wantErr)
		})
	}
}

func TestDisplayName(t *testing.T) {
	name, err := ContentItem{Kind: KindFile, Path: "/build/MyApp.app"}.DisplayName()
	require.NoError(t, err)
	require.Equal(t, "MyApp.app", name)

	name, err = ContentItem{Kind: KindFile, Path: "/build/MyApp.app", Name: "My App.app"}.DisplayName()
	require.NoError(t, err)
	require.Equal(t, "My App.app", name)

	_, err = ContentItem{Kind: KindLink, Path: "/"}.DisplayName()
	require.ErrorIs(t, err, ErrUnresolvableName)
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{
		"title": "MyApp",
		"background": "assets/background.png",
		"icon-size": 80,
		"window": {"size": {"width": 640, "height": 480}},
		"contents": [
			{"x": 192, "y": 344, "type": "file", "path": "/build/MyApp.app"},
			{"x": 448, "y": 344, "type": "link", "path": "/Applications"}
		]
	}`)

	decl, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, "MyApp", decl.Title)
	require.Equal(t, "assets/background.png", decl.Background)
	require.Equal(t, 80.0, decl.IconSize)
	require.Equal(t, uint32(640), decl.Window.Size.Width)
	require.Len(t, decl.Contents, 2)
	require.Equal(t, KindLink, decl.Contents[1].Kind)
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
title: MyApp
icon-size: 80
window:
  size:
    width: 640
    height: 480
contents:
  - x: 192
    y: 344
    type: file
    path: /build/MyApp.app
    name: My App.app
`)

	decl, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, "MyApp", decl.Title)
	require.Equal(t, "My App.app", decl.Contents[0].Name)
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse([]byte(`title: ""`))
	require.ErrorIs(t, err, ErrMissingTitle)

	_, err = Parse([]byte(`{not yaml`))
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dmg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
title: MyApp
icon-size: 80
window:
  size:
    width: 640
    height: 480
`), 0644))

	decl, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "MyApp", decl.Title)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
