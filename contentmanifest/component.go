package contentmanifest

// Component is a CycloneDX SBOM component. Version is omitted entirely when
// the package carries no version.
type Component struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Purl    string `json:"purl"`
}

// ComponentTypeLibrary is the component type emitted for every package;
// finer classification is not attempted.
const ComponentTypeLibrary = "library"
