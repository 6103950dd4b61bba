package asset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/tickflow/config"
)

// ManifestFile is the manifest name inside a package directory
const ManifestFile = "manifest.yaml"

var (
	ErrUnknownPlayMode = errors.New("unknown play mode")
	ErrVersionMismatch = errors.New("package version mismatch")
)

// Manifest lists the files of a package
type Manifest struct {
	Package string   `yaml:"package"`
	Version string   `yaml:"version"`
	Files   []string `yaml:"files"`
}

// Package is an initialized asset package
type Package struct {
	Name    string
	Mode    config.PlayMode
	Version string
	// BaseURL is where package files are read from
	BaseURL string
	Files   []string
}

// Has reports whether path is listed in the package
func (p *Package) Has(path string) bool {
	_, found := slices.BinarySearch(p.Files, path)
	return found
}

// PackageSpec is everything needed to initialize a package in one play mode
type PackageSpec struct {
	Name    string
	Mode    config.PlayMode
	Version string
	// Root is the local directory holding packages, used by editor_simulate and offline
	Root string
	// HostURL and FallbackURL are CDN roots, used by host
	HostURL     string
	FallbackURL string
}

// SpecFromConfig derives a PackageSpec, including CDN URLs, from asset settings
func SpecFromConfig(cfg config.Assets) PackageSpec {
	return PackageSpec{
		Name:        cfg.DefaultPackage,
		Mode:        cfg.PlayMode,
		Version:     cfg.Version,
		Root:        cfg.Root,
		HostURL:     HostURL(cfg.HostServer, cfg.Platform, cfg.Version),
		FallbackURL: HostURL(cfg.FallbackHostServer, cfg.Platform, cfg.Version),
	}
}

// HostURL renders the CDN root {host}/CDN/{Platform}/{version}
// Platforms without a dedicated CDN folder share the PC one
func HostURL(host, platform, version string) string {
	return fmt.Sprintf("%s/CDN/%s/%s", strings.TrimRight(host, "/"), cdnPlatform(platform), version)
}

func cdnPlatform(platform string) string {
	switch platform {
	case "Android", "IPhone", "WebGL":
		return platform
	}
	return "PC"
}

// InitOperation is a package initialization running off the tick thread
// It satisfies engine.Operation
type InitOperation struct {
	done atomic.Bool

	mu  sync.Mutex
	pkg *Package
	err error
}

// IsDone reports completion
func (o *InitOperation) IsDone() bool { return o.done.Load() }

// Err returns the initialization failure
func (o *InitOperation) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Package returns the initialized package, nil on failure or while running
func (o *InitOperation) Package() *Package {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pkg
}

func (o *InitOperation) finish(pkg *Package, err error) {
	o.mu.Lock()
	o.pkg, o.err = pkg, err
	o.mu.Unlock()
	o.done.Store(true)
}

// Initialize starts package initialization in the background
// Cancelling ctx aborts downloads in progress
func Initialize(ctx context.Context, fsys afs.Service, spec PackageSpec) *InitOperation {
	op := &InitOperation{}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				op.finish(nil, fmt.Errorf("package %s init panicked: %v", spec.Name, r))
			}
		}()
		pkg, err := initialize(ctx, fsys, spec)
		op.finish(pkg, err)
	}()
	return op
}

func initialize(ctx context.Context, fsys afs.Service, spec PackageSpec) (*Package, error) {
	switch spec.Mode {
	case config.PlayModeEditorSimulate:
		return simulateBuild(spec)

	case config.PlayModeOffline:
		base := filepath.Join(spec.Root, spec.Name)
		return loadManifest(ctx, fsys, spec, base)

	case config.PlayModeHost:
		primary := joinURL(spec.HostURL, spec.Name)
		pkg, err := loadManifest(ctx, fsys, spec, primary)
		if err == nil || spec.FallbackURL == "" || ctx.Err() != nil {
			return pkg, err
		}
		fallback := joinURL(spec.FallbackURL, spec.Name)
		pkg, ferr := loadManifest(ctx, fsys, spec, fallback)
		if ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		return pkg, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPlayMode, spec.Mode)
}

// simulateBuild lists the local package directory in place of a built manifest
func simulateBuild(spec PackageSpec) (*Package, error) {
	base := filepath.Join(spec.Root, spec.Name)
	var files []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() == ManifestFile {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("simulate build %s: %w", spec.Name, err)
	}
	slices.Sort(files)
	return &Package{
		Name:    spec.Name,
		Mode:    spec.Mode,
		Version: spec.Version,
		BaseURL: base,
		Files:   files,
	}, nil
}

func loadManifest(ctx context.Context, fsys afs.Service, spec PackageSpec, base string) (*Package, error) {
	data, err := fsys.DownloadWithURL(ctx, joinURL(base, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("package %s manifest at %s: %w", spec.Name, base, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("package %s manifest at %s: %w", spec.Name, base, err)
	}
	if m.Package != "" && m.Package != spec.Name {
		return nil, fmt.Errorf("manifest at %s describes package %q, want %q", base, m.Package, spec.Name)
	}
	if spec.Version != "" && m.Version != spec.Version {
		return nil, fmt.Errorf("package %s at %s has %q, want %q: %w", spec.Name, base, m.Version, spec.Version, ErrVersionMismatch)
	}

	files := slices.Clone(m.Files)
	slices.Sort(files)
	return &Package{
		Name:    spec.Name,
		Mode:    spec.Mode,
		Version: m.Version,
		BaseURL: base,
		Files:   files,
	}, nil
}

func joinURL(base, elem string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(elem, "/")
}
