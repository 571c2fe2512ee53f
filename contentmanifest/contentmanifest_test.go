package contentmanifest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/quay/zlog"

	"github.com/fepas/cachito"
)

const (
	testRef = "58c88e4952e95935c5dd72d4a24b0c44f2249f5b"
	gemSHA  = "a0299f5c9e6d0d1bb32d2e7a1fe6c412acbc2b79"
)

var testRequest = &cachito.Request{
	Repo: "https://github.com/org/repo-name.git",
	Ref:  testRef,
}

// testPackages is a request mixing every supported package type, including
// local Go dependencies at both the module and the package level.
func testPackages() []*cachito.Package {
	return []*cachito.Package{
		{
			Name: "example.com/org/project", Type: cachito.GoMod, Version: "1.1.1",
			Dependencies: []*cachito.Package{
				{Name: "example.com/anotherorg/project", Type: cachito.GoMod, Version: "2.0.0"},
				{Name: "example.com/org/project/child", Type: cachito.GoMod, Version: "./child"},
			},
		},
		{
			Name: "example.com/org/project", Type: cachito.GoPackage, Version: "1.1.1",
			Dependencies: []*cachito.Package{
				{Name: "fmt", Type: cachito.GoPackage},
				{Name: "example.com/anotherorg/project/lib", Type: cachito.GoPackage, Version: "3.0.0"},
				{Name: "./src/project", Type: cachito.GoPackage, Version: "./src/project"},
				{Name: "example.com/org/project/lib", Type: cachito.GoPackage, Version: "./lib"},
			},
		},
		{
			Name: "grc-ui", Type: cachito.NPM, Version: "1.0.0", Path: "client",
			Dependencies: []*cachito.Package{
				{Name: "fecha", Type: cachito.NPM, Version: "4.2.0"},
				{Name: "@types/events", Type: cachito.NPM, Version: "3.0.0", Dev: true},
			},
		},
		{
			Name: "mygem", Type: cachito.RubyGems, Version: "1.0.0", Path: "first_pkg",
			Dependencies: []*cachito.Package{
				{Name: "zeitwerk", Type: cachito.RubyGems, Version: "2.4.2"},
				{Name: "httpclient", Type: cachito.RubyGems, Version: "git+https://github.com/3scale/httpclient.git@" + gemSHA},
				{Name: "pathgem", Type: cachito.RubyGems, Version: "./vendor/pathgem"},
			},
		},
		{
			Name: "tour", Type: cachito.GitSubmodule, Path: "tour",
			Version: "https://github.com/testrepo/tour.git#" + testRef,
		},
	}
}

func TestICMEmpty(t *testing.T) {
	t.Parallel()
	ctx := zlog.Test(context.Background(), t)

	got, err := New(testRequest, nil).ICM(ctx)
	if err != nil {
		t.Fatalf("ICM: %v", err)
	}
	want := &ICM{
		ImageContents: []*ContentEntry{},
		Metadata: Metadata{
			ICMSpec:         JSONSchemaURL,
			ICMVersion:      1,
			ImageLayerIndex: -1,
		},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Fatalf("manifest mismatch (-got +want):\n%s", diff)
	}
}

func TestICM(t *testing.T) {
	t.Parallel()
	ctx := zlog.Test(context.Background(), t)

	got, err := New(testRequest, testPackages()).ICM(ctx)
	if err != nil {
		t.Fatalf("ICM: %v", err)
	}

	vcsPurl := "pkg:github/org/repo-name@" + testRef
	want := []*ContentEntry{
		{
			Dependencies: []Dependency{},
			Purl:         "pkg:github/testrepo/tour@" + testRef,
			Sources:      []Dependency{},
		},
		{
			Dependencies: []Dependency{
				{Purl: "pkg:gem/zeitwerk@2.4.2"},
				{Purl: "pkg:github/3scale/httpclient@" + gemSHA},
				{Purl: vcsPurl + "#first_pkg/vendor/pathgem"},
			},
			Purl: vcsPurl + "#first_pkg",
			Sources: []Dependency{
				{Purl: "pkg:gem/zeitwerk@2.4.2"},
				{Purl: "pkg:github/3scale/httpclient@" + gemSHA},
				{Purl: vcsPurl + "#first_pkg/vendor/pathgem"},
			},
		},
		{
			Dependencies: []Dependency{
				{Purl: "pkg:golang/example.com%2Fanotherorg%2Fproject%2Flib@3.0.0"},
				{Purl: "pkg:golang/example.com%2Forg%2Fproject%2Flib@1.1.1"},
				{Purl: "pkg:golang/example.com%2Forg%2Fproject@1.1.1#src/project"},
				{Purl: "pkg:golang/fmt"},
			},
			Purl: "pkg:golang/example.com%2Forg%2Fproject@1.1.1",
			Sources: []Dependency{
				{Purl: "pkg:golang/example.com%2Fanotherorg%2Fproject@2.0.0"},
				{Purl: "pkg:golang/example.com%2Forg%2Fproject@1.1.1#child"},
			},
		},
		{
			Dependencies: []Dependency{
				{Purl: "pkg:npm/fecha@4.2.0"},
			},
			Purl: vcsPurl + "#client",
			Sources: []Dependency{
				{Purl: "pkg:npm/%40types/events@3.0.0"},
				{Purl: "pkg:npm/fecha@4.2.0"},
			},
		},
	}
	if diff := cmp.Diff(got.ImageContents, want); diff != "" {
		t.Fatalf("image contents mismatch (-got +want):\n%s", diff)
	}
}

func TestICMDeterministic(t *testing.T) {
	t.Parallel()
	ctx := zlog.Test(context.Background(), t)

	cm := New(testRequest, testPackages())
	first, err := cm.ICM(ctx)
	if err != nil {
		t.Fatalf("ICM: %v", err)
	}
	second, err := cm.ICM(ctx)
	if err != nil {
		t.Fatalf("ICM: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated generation differs (-first +second):\n%s", diff)
	}
}

func TestSBOMComponents(t *testing.T) {
	t.Parallel()
	ctx := zlog.Test(context.Background(), t)

	got, err := New(testRequest, testPackages()).SBOMComponents(ctx)
	if err != nil {
		t.Fatalf("SBOMComponents: %v", err)
	}

	vcsPurl := "pkg:github/org/repo-name@" + testRef
	lib := ComponentTypeLibrary
	want := []Component{
		// Top-level packages, in input order.
		{Type: lib, Name: "example.com/org/project", Version: "1.1.1", Purl: "pkg:golang/example.com%2Forg%2Fproject@1.1.1"},
		{Type: lib, Name: "example.com/org/project", Version: "1.1.1", Purl: "pkg:golang/example.com%2Forg%2Fproject@1.1.1"},
		{Type: lib, Name: "grc-ui", Version: "1.0.0", Purl: vcsPurl + "#client"},
		{Type: lib, Name: "mygem", Version: "1.0.0", Purl: vcsPurl + "#first_pkg"},
		{Type: lib, Name: "tour", Version: "https://github.com/testrepo/tour.git#" + testRef, Purl: "pkg:github/testrepo/tour@" + testRef},
		// Dependencies, in discovery order.
		{Type: lib, Name: "example.com/anotherorg/project", Version: "2.0.0", Purl: "pkg:golang/example.com%2Fanotherorg%2Fproject@2.0.0"},
		{Type: lib, Name: "example.com/org/project/child", Version: "./child", Purl: "pkg:golang/example.com%2Forg%2Fproject@1.1.1#child"},
		{Type: lib, Name: "fmt", Purl: "pkg:golang/fmt"},
		{Type: lib, Name: "example.com/anotherorg/project/lib", Version: "3.0.0", Purl: "pkg:golang/example.com%2Fanotherorg%2Fproject%2Flib@3.0.0"},
		{Type: lib, Name: "./src/project", Version: "./src/project", Purl: "pkg:golang/example.com%2Forg%2Fproject@1.1.1#src/project"},
		// Local packages resolved through a named module report the
		// module's version.
		{Type: lib, Name: "example.com/org/project/lib", Version: "1.1.1", Purl: "pkg:golang/example.com%2Forg%2Fproject%2Flib@1.1.1"},
		{Type: lib, Name: "fecha", Version: "4.2.0", Purl: "pkg:npm/fecha@4.2.0"},
		{Type: lib, Name: "@types/events", Version: "3.0.0", Purl: "pkg:npm/%40types/events@3.0.0"},
		{Type: lib, Name: "zeitwerk", Version: "2.4.2", Purl: "pkg:gem/zeitwerk@2.4.2"},
		{Type: lib, Name: "httpclient", Version: "git+https://github.com/3scale/httpclient.git@" + gemSHA, Purl: "pkg:github/3scale/httpclient@" + gemSHA},
		{Type: lib, Name: "pathgem", Version: "./vendor/pathgem", Purl: vcsPurl + "#first_pkg/vendor/pathgem"},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Fatalf("components mismatch (-got +want):\n%s", diff)
	}
}

func TestGenerationsAreIndependent(t *testing.T) {
	t.Parallel()
	ctx := zlog.Test(context.Background(), t)

	cm := New(testRequest, testPackages())
	baseline, err := cm.ICM(ctx)
	if err != nil {
		t.Fatalf("ICM: %v", err)
	}
	if _, err := cm.SBOMComponents(ctx); err != nil {
		t.Fatalf("SBOMComponents: %v", err)
	}
	again, err := cm.ICM(ctx)
	if err != nil {
		t.Fatalf("ICM: %v", err)
	}
	if diff := cmp.Diff(baseline, again); diff != "" {
		t.Fatalf("SBOM generation leaked into ICM state (-baseline +again):\n%s", diff)
	}
}

func TestUnsupportedTypeSkipped(t *testing.T) {
	t.Parallel()
	ctx := zlog.Test(context.Background(), t)

	pkgs := []*cachito.Package{
		{Name: "pizza", Type: "tomato", Version: "1.0.0"},
	}
	cm := New(testRequest, pkgs)

	icm, err := cm.ICM(ctx)
	if err != nil {
		t.Fatalf("ICM: %v", err)
	}
	if len(icm.ImageContents) != 0 {
		t.Errorf("got %d image contents, want 0", len(icm.ImageContents))
	}

	components, err := cm.SBOMComponents(ctx)
	if err != nil {
		t.Fatalf("SBOMComponents: %v", err)
	}
	if len(components) != 0 {
		t.Errorf("got %d components, want 0", len(components))
	}
}

func TestGoModuleMissingParent(t *testing.T) {
	t.Parallel()
	ctx := zlog.Test(context.Background(), t)

	pkgs := []*cachito.Package{
		{
			Name: "example.com/org/project", Type: cachito.GoMod, Version: "1.1.1",
			Dependencies: []*cachito.Package{
				// Resolves outside every known module.
				{Name: "example.com/org/other", Type: cachito.GoMod, Version: "../other"},
			},
		},
	}
	_, err := New(testRequest, pkgs).ICM(ctx)
	if !errors.Is(err, cachito.ErrInternal) {
		t.Fatalf("got %v, want %v", err, cachito.ErrInternal)
	}
	if want := "Could not find parent Go module for package: example.com/org/other"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not contain %q", err, want)
	}
}

func TestGoPackageMissingModule(t *testing.T) {
	t.Parallel()
	ctx := zlog.Test(context.Background(), t)

	pkgs := []*cachito.Package{
		{
			Name: "example.com/org/project", Type: cachito.GoPackage, Version: "1.1.1",
			Dependencies: []*cachito.Package{
				{Name: "./src/project", Type: cachito.GoPackage, Version: "./src/project"},
			},
		},
	}
	_, err := New(testRequest, pkgs).ICM(ctx)
	if !errors.Is(err, cachito.ErrInternal) {
		t.Fatalf("got %v, want %v", err, cachito.ErrInternal)
	}
	if want := "Could not find parent Go module for package: example.com/org/project"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not contain %q", err, want)
	}
}

func TestGoPackageWithoutModuleKeepsEmptySources(t *testing.T) {
	t.Parallel()
	ctx := zlog.Test(context.Background(), t)

	pkgs := []*cachito.Package{
		{
			Name: "example.com/org/project", Type: cachito.GoPackage, Version: "1.1.1",
			Dependencies: []*cachito.Package{
				{Name: "fmt", Type: cachito.GoPackage},
			},
		},
	}
	icm, err := New(testRequest, pkgs).ICM(ctx)
	if err != nil {
		t.Fatalf("ICM: %v", err)
	}
	want := []*ContentEntry{
		{
			Dependencies: []Dependency{{Purl: "pkg:golang/fmt"}},
			Purl:         "pkg:golang/example.com%2Forg%2Fproject@1.1.1",
			Sources:      []Dependency{},
		},
	}
	if diff := cmp.Diff(icm.ImageContents, want); diff != "" {
		t.Fatalf("image contents mismatch (-got +want):\n%s", diff)
	}
}

func TestMixedTypeDependenciesIgnored(t *testing.T) {
	t.Parallel()
	ctx := zlog.Test(context.Background(), t)

	// Resolvers report dependency lists per package manager; anything of a
	// different type under a package is not that package's dependency.
	pkgs := []*cachito.Package{
		{
			Name: "grc-ui", Type: cachito.NPM, Version: "1.0.0",
			Dependencies: []*cachito.Package{
				{Name: "zeitwerk", Type: cachito.RubyGems, Version: "2.4.2"},
			},
		},
	}
	icm, err := New(testRequest, pkgs).ICM(ctx)
	if err != nil {
		t.Fatalf("ICM: %v", err)
	}
	want := []*ContentEntry{
		{
			Dependencies: []Dependency{},
			Purl:         "pkg:github/org/repo-name@" + testRef,
			Sources:      []Dependency{},
		},
	}
	if diff := cmp.Diff(icm.ImageContents, want); diff != "" {
		t.Fatalf("image contents mismatch (-got +want):\n%s", diff)
	}
}
