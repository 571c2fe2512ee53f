package cachito

import (
	"encoding/json"
	"fmt"
)

// Package types reported by the dependency resolvers.
const (
	GoMod        = "gomod"
	GoPackage    = "go-package"
	NPM          = "npm"
	Pip          = "pip"
	Yarn         = "yarn"
	RubyGems     = "rubygems"
	GitSubmodule = "git-submodule"
)

// Package is a package resolved for a build request, as reported by one of
// the package-manager resolvers. It is used primarily to generate a package
// URL (purl).
type Package struct {
	// the name of the package, in the package manager's own syntax
	Name string `json:"name"`
	// type of package: one of the constants above, or a future resolver type
	Type string `json:"type"`
	// the version of the package; syntax is manager specific and may be a
	// registry version, a VCS or download URL, or a relative path for local
	// dependencies
	Version string `json:"version,omitempty"`
	// marks a development-only dependency
	Dev bool `json:"dev,omitempty"`
	// subpath of this package within the request's source tree
	Path string `json:"path,omitempty"`
	// the package's dependencies, as flattened by the resolver
	Dependencies []*Package `json:"dependencies,omitempty"`
}

// Key is the identity of a Package.
//
// Identity deliberately excludes Path and Dependencies: two Package values
// describing the same coordinate with different dependency subtrees compare
// equal and collide when used as a map key. The manifest assembler relies on
// this to accumulate per-package data across repeated encounters.
type Key struct {
	Name    string
	Type    string
	Version string
	Dev     bool
}

// Key returns the package's identity for use as a map key.
func (p *Package) Key() Key {
	return Key{Name: p.Name, Type: p.Type, Version: p.Version, Dev: p.Dev}
}

// String implements fmt.Stringer.
func (p *Package) String() string {
	return fmt.Sprintf("package %s (type=%s, version=%s)", p.Name, p.Type, p.Version)
}

// ParsePackages decodes a JSON array of resolved packages, recursively
// validating that every package and dependency carries a name and a type.
func ParsePackages(data []byte) ([]*Package, error) {
	var pkgs []*Package
	if err := json.Unmarshal(data, &pkgs); err != nil {
		return nil, fmt.Errorf("cachito: unable to decode packages: %w", err)
	}
	for _, p := range pkgs {
		if err := p.validate(); err != nil {
			return nil, err
		}
	}
	return pkgs, nil
}

func (p *Package) validate() error {
	if p.Name == "" || p.Type == "" {
		return &Error{
			Kind:    ErrInvalid,
			Op:      "ParsePackages",
			Message: fmt.Sprintf("package %q is missing a name or type", p.Name),
		}
	}
	for _, d := range p.Dependencies {
		if err := d.validate(); err != nil {
			return err
		}
	}
	return nil
}
