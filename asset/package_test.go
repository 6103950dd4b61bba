package asset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/lixenwraith/tickflow/config"
)

func waitOp(t *testing.T, op *InitOperation) {
	t.Helper()
	require.Eventually(t, op.IsDone, 5*time.Second, time.Millisecond)
}

func TestHostURL(t *testing.T) {
	tests := []struct {
		host, platform, want string
	}{
		{"http://cdn", "Android", "http://cdn/CDN/Android/v1"},
		{"http://cdn/", "IPhone", "http://cdn/CDN/IPhone/v1"},
		{"http://cdn", "WebGL", "http://cdn/CDN/WebGL/v1"},
		{"http://cdn", "PC", "http://cdn/CDN/PC/v1"},
		{"http://cdn", "Linux", "http://cdn/CDN/PC/v1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HostURL(tt.host, tt.platform, "v1"), tt.platform)
	}
}

func TestSpecFromConfig(t *testing.T) {
	cfg := config.Default().Assets
	cfg.HostServer = "http://main"
	cfg.FallbackHostServer = "http://backup"
	cfg.Platform = "Android"

	spec := SpecFromConfig(cfg)
	assert.Equal(t, "http://main/CDN/Android/v1.0", spec.HostURL)
	assert.Equal(t, "http://backup/CDN/Android/v1.0", spec.FallbackURL)
	assert.Equal(t, cfg.DefaultPackage, spec.Name)
}

func TestInitialize_EditorSimulate(t *testing.T) {
	root := t.TempDir()
	writeTone(t, filepath.Join(root, "Main", "sounds", "click.wav"), 125*time.Millisecond)
	writeText(t, filepath.Join(root, "Main", "levels", "one.txt"), "level")
	writeText(t, filepath.Join(root, "Main", ManifestFile), "ignored")

	op := Initialize(context.Background(), afs.New(), PackageSpec{
		Name: "Main", Mode: config.PlayModeEditorSimulate, Version: "dev", Root: root,
	})
	waitOp(t, op)
	require.NoError(t, op.Err())

	pkg := op.Package()
	assert.Equal(t, []string{"levels/one.txt", "sounds/click.wav"}, pkg.Files)
	assert.True(t, pkg.Has("sounds/click.wav"))
	assert.False(t, pkg.Has(ManifestFile))
	assert.Equal(t, filepath.Join(root, "Main"), pkg.BaseURL)
}

func TestInitialize_Offline(t *testing.T) {
	root := t.TempDir()
	writeText(t, filepath.Join(root, "Main", ManifestFile), `
package: Main
version: v2
files: [sounds/b.wav, sounds/a.wav]
`)

	op := Initialize(context.Background(), afs.New(), PackageSpec{
		Name: "Main", Mode: config.PlayModeOffline, Version: "v2", Root: root,
	})
	waitOp(t, op)
	require.NoError(t, op.Err())
	assert.Equal(t, []string{"sounds/a.wav", "sounds/b.wav"}, op.Package().Files)
	assert.Equal(t, "v2", op.Package().Version)

	op = Initialize(context.Background(), afs.New(), PackageSpec{
		Name: "Main", Mode: config.PlayModeOffline, Version: "v3", Root: root,
	})
	waitOp(t, op)
	assert.ErrorIs(t, op.Err(), ErrVersionMismatch)
	assert.Nil(t, op.Package())
}

func TestInitialize_HostFallsBack(t *testing.T) {
	root := t.TempDir()
	writeText(t, filepath.Join(root, "CDN", "PC", "v1", "Main", ManifestFile), "package: Main\nversion: v1\nfiles: [a.wav]\n")
	server := httptest.NewServer(http.FileServer(http.Dir(root)))
	defer server.Close()

	spec := PackageSpec{
		Name:        "Main",
		Mode:        config.PlayModeHost,
		Version:     "v1",
		HostURL:     HostURL("http://127.0.0.1:1", "Linux", "v1"),
		FallbackURL: HostURL(server.URL, "Linux", "v1"),
	}
	op := Initialize(context.Background(), afs.New(), spec)
	waitOp(t, op)
	require.NoError(t, op.Err())
	assert.Equal(t, server.URL+"/CDN/PC/v1/Main", op.Package().BaseURL)
	assert.Equal(t, []string{"a.wav"}, op.Package().Files)
}

func TestInitialize_UnknownMode(t *testing.T) {
	op := Initialize(context.Background(), afs.New(), PackageSpec{Name: "Main", Mode: "cloud"})
	waitOp(t, op)
	assert.ErrorIs(t, op.Err(), ErrUnknownPlayMode)
}
