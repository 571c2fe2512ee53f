// Package contentmanifest assembles Image Content Manifests and CycloneDX
// component lists from a build request's resolved dependency graph.
package contentmanifest

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/quay/zlog"

	"github.com/fepas/cachito"
	"github.com/fepas/cachito/gomod"
	"github.com/fepas/cachito/purl"
)

// ContentManifest generates the standardized documents for one request.
//
// Each generation call builds its working state from scratch in a
// call-scoped builder, so [ContentManifest.ICM] and
// [ContentManifest.SBOMComponents] do not contaminate each other and the
// value is safe for concurrent calls.
type ContentManifest struct {
	// Request supplies the VCS coordinates for top-level and fallback purls.
	Request *cachito.Request
	// Packages is the flat list of all resolved packages, including
	// nested and transitive ones.
	Packages []*cachito.Package
}

// New returns a ContentManifest for the given request and resolved packages.
func New(req *cachito.Request, packages []*cachito.Package) *ContentManifest {
	return &ContentManifest{Request: req, Packages: packages}
}

// ICM generates the request's Image Content Manifest.
//
// Seeding must complete for all top-level packages before any dependency is
// processed: module purl lookups during dependency resolution rely on every
// module already being registered.
func (m *ContentManifest) ICM(ctx context.Context) (*ICM, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "contentmanifest/ContentManifest.ICM")
	b := m.newBuilder()
	if err := b.seed(ctx); err != nil {
		return nil, err
	}
	if err := b.processDependencies(ctx, modeICM); err != nil {
		return nil, err
	}
	b.setGoPackageSources(ctx)
	manifestCounter.WithLabelValues("icm").Inc()
	return GenerateICM(b.imageContents()), nil
}

// SBOMComponents generates the request's CycloneDX component list.
//
// Components keep processing order: top-level packages in input order, then
// dependencies in discovery order. A dependency referenced by more than one
// top-level package appears once per reference.
func (m *ContentManifest) SBOMComponents(ctx context.Context) ([]Component, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "contentmanifest/ContentManifest.SBOMComponents")
	b := m.newBuilder()
	for _, pkg := range m.Packages {
		switch pkg.Type {
		case cachito.GoPackage, cachito.GoMod, cachito.NPM, cachito.Pip,
			cachito.Yarn, cachito.RubyGems, cachito.GitSubmodule:
			p, err := purl.ToTopLevelPurl(pkg, b.request, pkg.Path)
			if err != nil {
				return nil, err
			}
			if pkg.Type == cachito.GoMod {
				if _, ok := b.gomod[pkg.Name]; !ok {
					b.gomod[pkg.Name] = &moduleData{purl: p, dependencies: []Dependency{}}
				}
			}
			b.appendComponent(pkg, p)
		default:
			zlog.Debug(ctx).
				Str("type", pkg.Type).
				Msg("no SBOM implementation for package type")
			skippedCounter.WithLabelValues(pkg.Type).Inc()
		}
	}
	if err := b.processDependencies(ctx, modeSBOM); err != nil {
		return nil, err
	}
	manifestCounter.WithLabelValues("sbom").Inc()
	return b.components, nil
}

// mode selects which document a processing pass feeds.
type mode int

const (
	modeICM mode = iota
	modeSBOM
)

// builder is the call-scoped working state of one generation pass. Per-type
// containers are explicit fields resolved through compile-time switches.
type builder struct {
	request  *cachito.Request
	packages []*cachito.Package
	// all gomod packages by module name; on duplicate names the last one
	// wins, mirroring how the resolvers report re-processed modules
	modules map[string]*cachito.Package

	gopkg        map[cachito.Key]*goPackageData
	gomod        map[string]*moduleData
	npm          map[cachito.Key]*ContentEntry
	pip          map[cachito.Key]*ContentEntry
	yarn         map[cachito.Key]*ContentEntry
	rubygems     map[cachito.Key]*ContentEntry
	gitsubmodule map[cachito.Key]*ContentEntry

	components []Component
}

// goPackageData keeps the package name next to its entry; the name is needed
// to find the owning module when sources are assigned, but is not part of
// the emitted entry.
type goPackageData struct {
	name  string
	entry *ContentEntry
}

// moduleData is a Go module's working entry. Modules feed the sources of
// go-package entries and are not themselves emitted into image contents.
type moduleData struct {
	purl         string
	dependencies []Dependency
}

func (m *ContentManifest) newBuilder() *builder {
	b := &builder{
		request:      m.Request,
		packages:     m.Packages,
		modules:      make(map[string]*cachito.Package),
		gopkg:        make(map[cachito.Key]*goPackageData),
		gomod:        make(map[string]*moduleData),
		npm:          make(map[cachito.Key]*ContentEntry),
		pip:          make(map[cachito.Key]*ContentEntry),
		yarn:         make(map[cachito.Key]*ContentEntry),
		rubygems:     make(map[cachito.Key]*ContentEntry),
		gitsubmodule: make(map[cachito.Key]*ContentEntry),
		components:   make([]Component, 0),
	}
	for _, pkg := range m.Packages {
		if pkg.Type == cachito.GoMod {
			b.modules[pkg.Name] = pkg
		}
	}
	return b
}

// seed registers a working entry for every top-level package of a supported
// type. Re-encounters of the same package identity keep the first entry.
func (b *builder) seed(ctx context.Context) error {
	for _, pkg := range b.packages {
		switch pkg.Type {
		case cachito.GoPackage:
			p, err := purl.ToTopLevelPurl(pkg, b.request, pkg.Path)
			if err != nil {
				return err
			}
			if _, ok := b.gopkg[pkg.Key()]; !ok {
				b.gopkg[pkg.Key()] = &goPackageData{name: pkg.Name, entry: newContentEntry(p)}
			}
		case cachito.GoMod:
			p, err := purl.ToTopLevelPurl(pkg, b.request, pkg.Path)
			if err != nil {
				return err
			}
			if _, ok := b.gomod[pkg.Name]; !ok {
				b.gomod[pkg.Name] = &moduleData{purl: p, dependencies: []Dependency{}}
			}
		case cachito.NPM, cachito.Pip, cachito.Yarn, cachito.RubyGems, cachito.GitSubmodule:
			p, err := purl.ToTopLevelPurl(pkg, b.request, pkg.Path)
			if err != nil {
				return err
			}
			data := b.entriesFor(pkg.Type)
			if _, ok := data[pkg.Key()]; !ok {
				data[pkg.Key()] = newContentEntry(p)
			}
		default:
			zlog.Debug(ctx).
				Str("type", pkg.Type).
				Msg("no ICM implementation for package type")
			skippedCounter.WithLabelValues(pkg.Type).Inc()
		}
	}
	return nil
}

// entriesFor maps a standard package type to its working container.
func (b *builder) entriesFor(pkgType string) map[cachito.Key]*ContentEntry {
	switch pkgType {
	case cachito.NPM:
		return b.npm
	case cachito.Pip:
		return b.pip
	case cachito.Yarn:
		return b.yarn
	case cachito.RubyGems:
		return b.rubygems
	case cachito.GitSubmodule:
		return b.gitsubmodule
	}
	panic(fmt.Sprintf("programmer error: no entry container for %q packages", pkgType))
}

// processDependencies dispatches every top-level package's direct
// dependencies to the processor for the owning package's type.
func (b *builder) processDependencies(ctx context.Context, md mode) error {
	for _, pkg := range b.packages {
		for _, dep := range pkg.Dependencies {
			var err error
			switch pkg.Type {
			case cachito.GoPackage:
				err = b.processGoPackage(pkg, dep, md)
			case cachito.GoMod:
				err = b.processGoModule(pkg, dep, md)
			case cachito.NPM:
				err = b.processStandard(b.npm, pkg, dep, md)
			case cachito.Pip:
				err = b.processStandard(b.pip, pkg, dep, md)
			case cachito.Yarn:
				err = b.processStandard(b.yarn, pkg, dep, md)
			case cachito.RubyGems:
				err = b.processRubyGems(pkg, dep, md)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// processGoModule handles a gomod dependency of a gomod package. Local
// dependencies ("./..." versions) resolve to the owning module's purl, with
// a relative-path fragment when the dependency is not itself a known module.
func (b *builder) processGoModule(pkg, dep *cachito.Package, md mode) error {
	if dep.Type != cachito.GoMod {
		return nil
	}
	parentName := pkg.Name
	relPath := ""
	if strings.HasPrefix(dep.Version, ".") {
		depPath := gomod.LocalPath(pkg.Name, dep.Version)
		name, ok := gomod.MatchParentModule(depPath, maps.Keys(b.gomod))
		if !ok {
			return &cachito.Error{
				Kind:    cachito.ErrInternal,
				Op:      "processGoModule",
				Message: fmt.Sprintf("Could not find parent Go module for package: %s", depPath),
			}
		}
		parentName = name
		if _, known := b.gomod[dep.Name]; !known {
			relPath = gomod.RelativePath(parentName, depPath)
		}
	}
	parent, ok := b.gomod[parentName]
	if !ok {
		return &cachito.Error{
			Kind:    cachito.ErrInternal,
			Op:      "processGoModule",
			Message: fmt.Sprintf("Could not find parent Go module for package: %s", pkg.Name),
		}
	}
	depPurl, err := purl.ToPurl(dep, relPath)
	if err != nil {
		return err
	}
	depPurl = purl.ReplaceParentPurlPlaceholder(depPurl, parent.purl)

	if md == modeSBOM {
		b.appendComponent(dep, depPurl)
		return nil
	}
	owner := b.gomod[pkg.Name]
	owner.dependencies = append(owner.dependencies, Dependency{Purl: depPurl})
	return nil
}

// processGoPackage handles a go-package dependency of a go-package package.
func (b *builder) processGoPackage(pkg, dep *cachito.Package, md mode) error {
	if dep.Type != cachito.GoPackage {
		return nil
	}
	depPurl := ""
	effective := dep
	var err error
	if strings.HasPrefix(dep.Version, ".") {
		depPurl, effective, err = b.localGoPackagePurl(pkg, dep)
	} else {
		depPurl, err = purl.ToPurl(dep, "")
	}
	if err != nil {
		return err
	}

	if md == modeSBOM {
		b.appendComponent(effective, depPurl)
		return nil
	}
	entry := b.gopkg[pkg.Key()].entry
	entry.Dependencies = append(entry.Dependencies, Dependency{Purl: depPurl})
	return nil
}

// localGoPackagePurl resolves a local go-package dependency.
//
// When the dependency's name matches a known module, the module's version
// replaces the local version marker; the returned package reflects the
// substitution so SBOM components report the resolved version. Otherwise the
// dependency's path is computed through the requesting package's own parent
// module and expressed as a fragment on the owning module's purl. The error
// cases here are unreachable for a well-formed dependency graph.
func (b *builder) localGoPackagePurl(pkg, dep *cachito.Package) (string, *cachito.Package, error) {
	if !strings.HasPrefix(dep.Version, ".") {
		return "", nil, &cachito.Error{
			Kind:    cachito.ErrInternal,
			Op:      "localGoPackagePurl",
			Message: fmt.Sprintf("%v has an invalid version for a local dependency", dep),
		}
	}

	if modName, ok := gomod.MatchParentModule(dep.Name, maps.Keys(b.modules)); ok {
		resolved := *dep
		resolved.Version = b.modules[modName].Version
		p, err := purl.ToPurl(&resolved, "")
		return p, &resolved, err
	}

	pkgModule, ok := gomod.MatchParentModule(pkg.Name, maps.Keys(b.modules))
	if !ok {
		// A top-level go-package always matches a module.
		return "", nil, &cachito.Error{
			Kind:    cachito.ErrInternal,
			Op:      "localGoPackagePurl",
			Message: fmt.Sprintf("Could not find parent Go module for package: %s", pkg.Name),
		}
	}
	depPath := gomod.LocalPath(pkgModule, dep.Version)
	depModule, ok := gomod.MatchParentModule(depPath, maps.Keys(b.modules))
	if !ok {
		// The dependency path should at least match the root module.
		return "", nil, &cachito.Error{
			Kind:    cachito.ErrInternal,
			Op:      "localGoPackagePurl",
			Message: fmt.Sprintf("Could not find parent Go module for package: %s", depPath),
		}
	}
	relPath := gomod.RelativePath(depModule, depPath)
	p, err := purl.ToPurl(dep, relPath)
	if err != nil {
		return "", nil, err
	}
	return purl.ReplaceParentPurlPlaceholder(p, b.gomod[depModule].purl), dep, nil
}

// setGoPackageSources copies each go-package's owning module's dependency
// list into the package's sources. Packages and modules are only related by
// name, so the owning module is the one sharing the package's name or its
// longest matching parent.
func (b *builder) setGoPackageSources(ctx context.Context) {
	for _, data := range b.gopkg {
		moduleName := data.name
		if _, ok := b.gomod[moduleName]; !ok {
			m, ok := gomod.MatchParentModule(data.name, maps.Keys(b.gomod))
			if !ok {
				zlog.Warn(ctx).
					Str("purl", data.entry.Purl).
					Msg("could not find a Go module for package")
				continue
			}
			moduleName = m
		}
		data.entry.Sources = append(data.entry.Sources[:0], b.gomod[moduleName].dependencies...)
	}
}

// processStandard handles npm, pip and yarn dependencies, which need no
// local-path magic. Dev dependencies land in sources but not dependencies.
func (b *builder) processStandard(data map[cachito.Key]*ContentEntry, pkg, dep *cachito.Package, md mode) error {
	if dep.Type != pkg.Type {
		return nil
	}
	p, err := purl.ToPurl(dep, "")
	if err != nil {
		return err
	}
	if md == modeSBOM {
		b.appendComponent(dep, p)
		return nil
	}
	entry := data[pkg.Key()]
	entry.Sources = append(entry.Sources, Dependency{Purl: p})
	if !dep.Dev {
		entry.Dependencies = append(entry.Dependencies, Dependency{Purl: p})
	}
	return nil
}

// processRubyGems handles rubygems dependencies. Path dependencies resolve
// against the request's repository purl, with the owning package's subpath
// prepended to the dependency's relative path.
func (b *builder) processRubyGems(pkg, dep *cachito.Package, md mode) error {
	if dep.Type != cachito.RubyGems {
		return nil
	}
	parentPurl := purl.ToVCSPurl(b.request.RepoName(), b.request.Repo, b.request.Ref)
	depPurl, err := purl.ToPurl(dep, pkg.Path)
	if err != nil {
		return err
	}
	depPurl = purl.ReplaceParentPurlPlaceholder(depPurl, parentPurl)

	if md == modeSBOM {
		b.appendComponent(dep, depPurl)
		return nil
	}
	entry := b.rubygems[pkg.Key()]
	entry.Sources = append(entry.Sources, Dependency{Purl: depPurl})
	entry.Dependencies = append(entry.Dependencies, Dependency{Purl: depPurl})
	return nil
}

func (b *builder) appendComponent(pkg *cachito.Package, purl string) {
	b.components = append(b.components, Component{
		Type:    ComponentTypeLibrary,
		Name:    pkg.Name,
		Version: pkg.Version,
		Purl:    purl,
	})
}

// imageContents concatenates the per-type entries in the manifest's fixed
// type order. Entry order within a type is normalized by the document sort.
func (b *builder) imageContents() []*ContentEntry {
	contents := make([]*ContentEntry, 0,
		len(b.gopkg)+len(b.npm)+len(b.pip)+len(b.yarn)+len(b.rubygems)+len(b.gitsubmodule))
	for _, data := range b.gopkg {
		contents = append(contents, data.entry)
	}
	for _, containers := range []map[cachito.Key]*ContentEntry{
		b.npm, b.pip, b.yarn, b.rubygems, b.gitsubmodule,
	} {
		for _, e := range containers {
			contents = append(contents, e)
		}
	}
	return contents
}
