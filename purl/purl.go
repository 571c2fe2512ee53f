// Package purl converts resolved packages into Package URL (purl) strings.
//
// The encodings intentionally reproduce the documents cachito has always
// emitted, including a few deviations from the canonical purl form: Go
// import paths are escaped whole (so "/" becomes "%2F"), qualifier order is
// meaningful, the checksum qualifier value is carried unescaped, and
// "file:"-referenced npm/yarn dependencies produce a literal
// "generic/<name>?file%3A<rest>" string that is not a well-formed purl.
// Consumers of the ICM and SBOM documents depend on these exact strings, so
// the assembly is done by hand rather than through a purl encoder.
package purl

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/package-url/packageurl-go"

	"github.com/fepas/cachito"
)

// ParentPurlPlaceholder is the token emitted for a local dependency whose
// owning module is not yet known. [ReplaceParentPurlPlaceholder] substitutes
// the resolved parent purl once all modules have been registered.
const ParentPurlPlaceholder = "PARENT_PURL"

// forgeVersion matches npm/yarn forge shorthands like
// "github:org/repo#commit". Gitlab and bitbucket allow nested namespaces, so
// everything up to the final path segment is the namespace.
var forgeVersion = regexp.MustCompile(`^(github|gitlab|bitbucket):(.+)/([^#/]+)#(.+)$`)

var httpScheme = regexp.MustCompile(`^https?://`)

// pipNormalize matches the separator runs that PEP 503 collapses in project
// names, extended with whitespace.
var pipNormalize = regexp.MustCompile(`[-_.\s]+`)

// ToPurl converts a package into a purl string.
//
// relativePath carries the position of a local dependency below its owning
// module or repository; it is ignored for non-local versions. Local
// dependencies produce a [ParentPurlPlaceholder] purl to be substituted once
// the parent purl is known.
func ToPurl(pkg *cachito.Package, relativePath string) (string, error) {
	switch pkg.Type {
	case cachito.GoMod, cachito.GoPackage:
		return golangPurl(pkg, relativePath), nil
	case cachito.NPM, cachito.Yarn:
		return npmPurl(pkg)
	case cachito.Pip:
		return pipPurl(pkg)
	case cachito.RubyGems:
		return rubygemsPurl(pkg, relativePath)
	case cachito.GitSubmodule:
		return submodulePurl(pkg)
	}
	return "", &cachito.Error{
		Kind:    cachito.ErrUnsupported,
		Message: fmt.Sprintf("The PURL spec is not defined for %s packages", pkg.Type),
	}
}

func golangPurl(pkg *cachito.Package, relativePath string) string {
	switch {
	case pkg.Version == "":
		// Standard-library packages carry no version segment.
		return fmt.Sprintf("pkg:%s/%s", packageurl.TypeGolang, quote(pkg.Name))
	case strings.HasPrefix(pkg.Version, "."):
		if relativePath != "" {
			return ParentPurlPlaceholder + "#" + path.Clean(relativePath)
		}
		return ParentPurlPlaceholder
	}
	return fmt.Sprintf("pkg:%s/%s@%s", packageurl.TypeGolang, quote(pkg.Name), pkg.Version)
}

func npmPurl(pkg *cachito.Package) (string, error) {
	v := pkg.Version
	switch {
	case forgeVersion.MatchString(v):
		m := forgeVersion.FindStringSubmatch(v)
		return fmt.Sprintf("pkg:%s/%s/%s@%s", m[1], m[2], m[3], m[4]), nil
	case strings.HasPrefix(v, "github:"),
		strings.HasPrefix(v, "gitlab:"),
		strings.HasPrefix(v, "bitbucket:"):
		// Forge reference without a commit hash.
		return "", malformedVersion(v)
	case strings.HasPrefix(v, "file:"):
		// Documented legacy output; not a well-formed purl.
		return fmt.Sprintf("%s/%s?%s", packageurl.TypeGeneric, pkg.Name, quote(v)), nil
	case strings.Contains(v, "://"):
		scheme, _, _ := strings.Cut(v, "://")
		switch scheme {
		case "git", "git+http", "git+https", "git+ssh":
			return fmt.Sprintf("pkg:%s/%s?vcs_url=%s", packageurl.TypeGeneric, pkg.Name, quote(v)), nil
		case "http", "https":
			return fmt.Sprintf("pkg:%s/%s?download_url=%s", packageurl.TypeGeneric, pkg.Name, quote(v)), nil
		}
		return "", &cachito.Error{
			Kind:    cachito.ErrUnknownProtocol,
			Message: fmt.Sprintf("Unknown protocol in %s package version: %s", pkg.Type, v),
		}
	}
	return fmt.Sprintf("pkg:%s/%s@%s", packageurl.TypeNPM, npmName(pkg.Name), v), nil
}

func pipPurl(pkg *cachito.Package) (string, error) {
	v := pkg.Version
	switch {
	case v == "":
		return "", malformedVersion(v)
	case strings.HasPrefix(v, "git+"):
		return vcsVersionPurl(pkg.Name, strings.TrimPrefix(v, "git+"))
	case httpScheme.MatchString(v):
		purl := fmt.Sprintf("pkg:%s/%s?download_url=%s", packageurl.TypeGeneric, pkg.Name, quote(v))
		if hash := cachitoHash(v); hash != "" {
			purl += "&checksum=" + hash
		}
		return purl, nil
	}
	return fmt.Sprintf("pkg:%s/%s@%s", packageurl.TypePyPi, pipName(pkg.Name), v), nil
}

func rubygemsPurl(pkg *cachito.Package, relativePath string) (string, error) {
	v := pkg.Version
	switch {
	case strings.HasPrefix(v, "git+"):
		return vcsVersionPurl(pkg.Name, strings.TrimPrefix(v, "git+"))
	case strings.HasPrefix(v, "."):
		return ParentPurlPlaceholder + "#" + path.Join(relativePath, v), nil
	}
	return fmt.Sprintf("pkg:%s/%s@%s", packageurl.TypeGem, pkg.Name, v), nil
}

func submodulePurl(pkg *cachito.Package) (string, error) {
	repo, ref, ok := strings.Cut(pkg.Version, "#")
	if !ok {
		return "", malformedVersion(pkg.Version)
	}
	return ToVCSPurl(pkg.Name, repo, ref), nil
}

// ToVCSPurl builds a purl from a repository URL and a commit ref. Recognized
// forges produce "pkg:<forge>/<org>/<repo>@<ref>" with credentials, port and
// a trailing ".git" stripped; any other host falls back to a generic purl
// whose vcs_url qualifier carries "<repoURL>@<ref>" url-encoded.
func ToVCSPurl(name, repoURL, ref string) string {
	repoURL = strings.TrimRight(repoURL, "/")
	u, err := url.Parse(repoURL)
	if err == nil {
		var forge string
		switch strings.ToLower(u.Hostname()) {
		case "github.com":
			forge = packageurl.TypeGithub
		case "bitbucket.org":
			forge = packageurl.TypeBitbucket
		}
		if forge != "" {
			repoPath := strings.Trim(u.Path, "/")
			if i := strings.LastIndex(repoPath, "/"); i >= 0 {
				namespace := repoPath[:i]
				repo := strings.TrimSuffix(repoPath[i+1:], ".git")
				return fmt.Sprintf("pkg:%s/%s/%s@%s", forge, strings.ToLower(namespace), strings.ToLower(repo), ref)
			}
		}
	}
	return fmt.Sprintf("pkg:%s/%s?vcs_url=%s", packageurl.TypeGeneric, name, quote(repoURL+"@"+ref))
}

// ToTopLevelPurl returns the purl identifying a package at the root of, or a
// subpath within, the request's resolved source tree.
func ToTopLevelPurl(pkg *cachito.Package, req *cachito.Request, subpath string) (string, error) {
	switch pkg.Type {
	case cachito.GoMod, cachito.GoPackage, cachito.GitSubmodule:
		// Go import paths already encode the directory, and a submodule
		// points at a different repository entirely. Neither takes a
		// subpath fragment.
		return ToPurl(pkg, "")
	case cachito.NPM, cachito.Pip, cachito.Yarn, cachito.RubyGems:
		purl := ToVCSPurl(req.RepoName(), req.Repo, req.Ref)
		if subpath != "" {
			purl += "#" + subpath
		}
		return purl, nil
	}
	return "", &cachito.Error{
		Kind:    cachito.ErrUnsupported,
		Message: fmt.Sprintf("'%s' is not a valid top level package", pkg.Type),
	}
}

// ReplaceParentPurlPlaceholder substitutes the resolved parent purl into a
// purl produced for a local dependency. Purls without the placeholder pass
// through unchanged.
func ReplaceParentPurlPlaceholder(depPurl, parentPurl string) string {
	return strings.ReplaceAll(depPurl, ParentPurlPlaceholder, parentPurl)
}

// vcsVersionPurl handles "git+<url>@<ref>" pip and rubygems versions.
func vcsVersionPurl(name, repoRef string) (string, error) {
	i := strings.LastIndex(repoRef, "@")
	if i < 0 {
		return "", malformedVersion("git+" + repoRef)
	}
	return ToVCSPurl(name, repoRef[:i], repoRef[i+1:]), nil
}

// cachitoHash extracts the cachito_hash value from a download URL's
// fragment, if present.
func cachitoHash(downloadURL string) string {
	u, err := url.Parse(downloadURL)
	if err != nil || u.Fragment == "" {
		return ""
	}
	q, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return ""
	}
	return q.Get("cachito_hash")
}

func malformedVersion(v string) error {
	return &cachito.Error{
		Kind:    cachito.ErrMalformed,
		Message: fmt.Sprintf("Could not convert version %s to purl", v),
	}
}

// quote percent-encodes everything outside the unreserved set, like Python's
// urllib quote with safe="".
func quote(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// npmName escapes an npm name per path segment, so scoped names come out as
// "%40scope/name".
func npmName(name string) string {
	segs := strings.Split(name, "/")
	for i, s := range segs {
		segs[i] = quote(s)
	}
	return strings.Join(segs, "/")
}

// pipName normalizes a pip project name: lowercased, separator runs
// collapsed to a single hyphen.
func pipName(name string) string {
	return strings.ToLower(pipNormalize.ReplaceAllString(name, "-"))
}
