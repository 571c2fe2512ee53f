// Package spdx encodes a content manifest's component list as an SPDX
// document.
package spdx

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"time"

	spdxjson "github.com/spdx/tools-golang/json"
	"github.com/spdx/tools-golang/spdx/common"
	v2common "github.com/spdx/tools-golang/spdx/v2/common"
	"github.com/spdx/tools-golang/spdx/v2/v2_3"

	"github.com/fepas/cachito/contentmanifest"
	"github.com/fepas/cachito/sbom"
)

// Version describes the SPDX version to target.
type Version string

const (
	V2_3 Version = "v2.3"
)

// Format describes the data format for the SPDX document.
type Format string

const JSONFormat Format = "json"

// Option is a type for setting optional fields for the Encoder.
type Option func(*Encoder)

// Creator describes the creator of the SPDX document that will be produced from the encoding.
type Creator struct {
	// Creator is the value of the [Creator] relationship.
	Creator string
	// CreatorType is the key of the [Creator] relationship.
	// In accordance to the SPDX v2 spec, CreatorType should be one of "Person", "Organization", or "Tool".
	CreatorType string
}

var _ sbom.Encoder = (*Encoder)(nil)

// Encoder defines an SPDX encoder and accepts certain values from the caller
// to use in the SPDX document.
type Encoder struct {
	// The target SPDX version in which to encode.
	Version Version
	// The data format in which to encode.
	Format Format
	// The SPDX document creator information.
	Creators []Creator
	// The SPDX document name field.
	DocumentName string
	// The SPDX document namespace field.
	DocumentNamespace string
	// The SPDX document comment field.
	DocumentComment string
}

// NewDefaultEncoder creates an Encoder with default values and sets optional
// fields based on the provided options.
func NewDefaultEncoder(options ...Option) *Encoder {
	e := &Encoder{
		Version: V2_3,
		Format:  JSONFormat,
		Creators: []Creator{
			{
				Creator:     "Cachito-" + getVersion(),
				CreatorType: "Tool",
			},
		},
	}

	for _, opt := range options {
		opt(e)
	}

	return e
}

// WithDocumentName is used to set the SPDX document name field.
func WithDocumentName(name string) Option {
	return func(e *Encoder) {
		e.DocumentName = name
	}
}

// WithDocumentNamespace is used to set the SPDX document namespace field.
func WithDocumentNamespace(namespace string) Option {
	return func(e *Encoder) {
		e.DocumentNamespace = namespace
	}
}

// WithDocumentComment is used to set the SPDX document comment field.
func WithDocumentComment(comment string) Option {
	return func(e *Encoder) {
		e.DocumentComment = comment
	}
}

// Encode generates the manifest's component list and writes it as an SPDX
// document to w. Every component becomes a package the document DESCRIBES.
func (e *Encoder) Encode(ctx context.Context, w io.Writer, cm *contentmanifest.ContentManifest) error {
	spdx, err := e.parseComponents(ctx, cm)
	if err != nil {
		return err
	}

	var tmpConverterDoc common.AnyDocument
	switch e.Version {
	case V2_3:
		tmpConverterDoc = spdx
	default:
		return fmt.Errorf("unknown SPDX version: %v", e.Version)
	}

	switch e.Format {
	case JSONFormat:
		if err := spdxjson.Write(tmpConverterDoc, w); err != nil {
			return err
		}
		return nil
	}

	return fmt.Errorf("unknown requested format: %v", e.Format)
}

func (e *Encoder) parseComponents(ctx context.Context, cm *contentmanifest.ContentManifest) (*v2_3.Document, error) {
	components, err := cm.SBOMComponents(ctx)
	if err != nil {
		return nil, err
	}

	creators := make([]v2common.Creator, len(e.Creators))
	for i, creator := range e.Creators {
		creators[i] = v2common.Creator{
			Creator:     creator.Creator,
			CreatorType: creator.CreatorType,
		}
	}

	// Initial metadata
	out := &v2_3.Document{
		SPDXVersion:       v2_3.Version,
		DataLicense:       v2_3.DataLicense,
		SPDXIdentifier:    "DOCUMENT",
		DocumentName:      e.DocumentName,
		DocumentNamespace: e.DocumentNamespace,
		CreationInfo: &v2_3.CreationInfo{
			Creators: creators,
			Created:  time.Now().Format("2006-01-02T15:04:05Z"),
		},
		DocumentComment: e.DocumentComment,
	}

	for i, c := range components {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		pkg := &v2_3.Package{
			PackageName:             c.Name,
			PackageSPDXIdentifier:   v2common.ElementID("Package-" + strconv.Itoa(i)),
			PackageVersion:          c.Version,
			PackageDownloadLocation: "NOASSERTION",
			PackageExternalReferences: []*v2_3.PackageExternalReference{
				{
					Category: "PACKAGE-MANAGER",
					RefType:  "purl",
					Locator:  c.Purl,
				},
			},
		}
		out.Packages = append(out.Packages, pkg)
		out.Relationships = append(out.Relationships, &v2_3.Relationship{
			RefA:         v2common.MakeDocElementID("", "DOCUMENT"),
			RefB:         v2common.MakeDocElementID("", string(pkg.PackageSPDXIdentifier)),
			Relationship: "DESCRIBES",
		})
	}

	return out, nil
}

// getVersion will attempt to read out the current binary's debug info and
// find the module version.
func getVersion() string {
	var core string
	info, infoOK := debug.ReadBuildInfo()
	if infoOK {
		for _, m := range info.Deps {
			if m.Path != "github.com/fepas/cachito" {
				continue
			}
			core = m.Version
			if m.Replace != nil && m.Replace.Version != m.Version {
				core = m.Replace.Version
			}
			return core
		}
	}

	return "unknown revision"
}
