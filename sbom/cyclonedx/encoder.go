// Package cyclonedx encodes a content manifest's component list as a
// CycloneDX JSON document.
package cyclonedx

import (
	"context"
	"encoding/json"
	"io"

	"github.com/google/uuid"

	"github.com/fepas/cachito/contentmanifest"
	"github.com/fepas/cachito/sbom"
)

// BOMFormat is the fixed bomFormat field value.
const BOMFormat = "CycloneDX"

// SpecVersion is the CycloneDX specification version targeted by default.
const SpecVersion = "1.4"

// SchemaURL is the schema the emitted document conforms to.
const SchemaURL = "https://raw.githubusercontent.com/CycloneDX/specification/1.4/schema/bom-1.4.schema.json"

// Document is a CycloneDX bill of materials.
type Document struct {
	BOMFormat    string                      `json:"bomFormat"`
	SpecVersion  string                      `json:"specVersion"`
	SerialNumber string                      `json:"serialNumber,omitempty"`
	Version      int                         `json:"version"`
	Components   []contentmanifest.Component `json:"components"`
}

// Option is a type for setting optional fields for the Encoder.
type Option func(*Encoder)

var _ sbom.Encoder = (*Encoder)(nil)

// Encoder defines a CycloneDX encoder and accepts certain values from the
// caller to use in the document.
type Encoder struct {
	// The CycloneDX specification version to declare.
	SpecVersion string
	// The document version field.
	Version int
	// SerialNumber toggles generation of a "urn:uuid:" serial number.
	SerialNumber bool
}

// NewDefaultEncoder creates an Encoder with default values and sets optional
// fields based on the provided options.
func NewDefaultEncoder(options ...Option) *Encoder {
	e := &Encoder{
		SpecVersion: SpecVersion,
		Version:     1,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// WithSerialNumber causes every emitted document to carry a fresh
// "urn:uuid:" serial number.
func WithSerialNumber() Option {
	return func(e *Encoder) {
		e.SerialNumber = true
	}
}

// WithVersion is used to set the document version field.
func WithVersion(version int) Option {
	return func(e *Encoder) {
		e.Version = version
	}
}

// Encode generates the manifest's component list and writes the wrapping
// CycloneDX document to w.
func (e *Encoder) Encode(ctx context.Context, w io.Writer, cm *contentmanifest.ContentManifest) error {
	components, err := cm.SBOMComponents(ctx)
	if err != nil {
		return err
	}
	doc := Document{
		BOMFormat:   BOMFormat,
		SpecVersion: e.SpecVersion,
		Version:     e.Version,
		Components:  components,
	}
	if e.SerialNumber {
		doc.SerialNumber = "urn:uuid:" + uuid.NewString()
	}
	return json.NewEncoder(w).Encode(&doc)
}
