package contentmanifest

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
)

// ICM document constants.
const (
	// ICMVersion is the version of the Image Content Manifest format.
	ICMVersion = 1
	// JSONSchemaURL is the schema the emitted manifest conforms to.
	JSONSchemaURL = "https://raw.githubusercontent.com/containerbuildsystem/atomic-reactor/" +
		"f4abcfdaf8247a6b074f94fa84f3846f82d781c6/atomic_reactor/schemas/content_manifest.json"
	// UnknownLayerIndex marks a manifest whose image layer index has not
	// been assigned; assignment is an external post-processing step.
	UnknownLayerIndex = -1
)

// Dependency is a purl reference inside an image content entry.
type Dependency struct {
	Purl string `json:"purl"`
}

// ContentEntry is one top-level package in the manifest's image contents.
//
// Struct fields are declared in sorted key order so the marshaled object's
// keys come out sorted, matching the deterministic-sort contract.
type ContentEntry struct {
	Dependencies []Dependency `json:"dependencies"`
	Purl         string       `json:"purl"`
	Sources      []Dependency `json:"sources"`
}

// Metadata is the fixed metadata block of an ICM document.
type Metadata struct {
	ICMSpec         string `json:"icm_spec"`
	ICMVersion      int    `json:"icm_version"`
	ImageLayerIndex int    `json:"image_layer_index"`
}

// ICM is an Image Content Manifest: a record of every package and dependency
// baked into an image layer.
type ICM struct {
	ImageContents []*ContentEntry `json:"image_contents"`
	Metadata      Metadata        `json:"metadata"`
}

// GenerateICM wraps image contents into the base manifest template and
// deterministically sorts the result. A nil contents slice yields an empty
// (but present) image_contents array.
func GenerateICM(imageContents []*ContentEntry) *ICM {
	icm := &ICM{
		ImageContents: imageContents,
		Metadata: Metadata{
			ICMSpec:         JSONSchemaURL,
			ICMVersion:      ICMVersion,
			ImageLayerIndex: UnknownLayerIndex,
		},
	}
	if icm.ImageContents == nil {
		icm.ImageContents = []*ContentEntry{}
	}
	icm.sort()
	return icm
}

// sort orders the document so repeated generations are byte-identical:
// purl lists sort by purl, and entries sort by their canonical JSON
// serialization (object keys are already emitted in sorted order).
func (icm *ICM) sort() {
	for _, e := range icm.ImageContents {
		sortDependencies(e.Dependencies)
		sortDependencies(e.Sources)
	}
	slices.SortFunc(icm.ImageContents, func(a, b *ContentEntry) int {
		return bytes.Compare(canonicalJSON(a), canonicalJSON(b))
	})
}

func sortDependencies(deps []Dependency) {
	slices.SortFunc(deps, func(a, b Dependency) int {
		return strings.Compare(a.Purl, b.Purl)
	})
}

func canonicalJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Document types contain nothing that can fail to marshal.
		panic(err)
	}
	return b
}

func newContentEntry(purl string) *ContentEntry {
	return &ContentEntry{
		Dependencies: []Dependency{},
		Purl:         purl,
		Sources:      []Dependency{},
	}
}
