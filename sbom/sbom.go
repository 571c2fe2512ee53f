// Package sbom defines the interface for serializing a request's resolved
// packages as a Software Bill of Materials document.
package sbom

import (
	"context"
	"io"

	"github.com/fepas/cachito/contentmanifest"
)

// Encoder writes an SBOM document for the given content manifest to w.
type Encoder interface {
	Encode(ctx context.Context, w io.Writer, cm *contentmanifest.ContentManifest) error
}
