package cachito

import (
	"net/url"
	"strings"
)

// Request is a build request's VCS coordinates. It is read-only input used
// for deriving top-level and VCS purls; fetching the repository and
// resolving its dependencies happen elsewhere.
type Request struct {
	// Repo is the URL of the repository the request was made for.
	Repo string `json:"repo"`
	// Ref is the commit or tag that was resolved.
	Ref string `json:"ref"`
}

// RepoName returns the repository's name: the final segment of the URL path
// with any trailing "/" and ".git" suffix stripped.
func (r *Request) RepoName() string {
	name := r.Repo
	if u, err := url.Parse(r.Repo); err == nil && u.Path != "" {
		name = u.Path
	}
	name = strings.Trim(name, "/")
	name = strings.TrimSuffix(name, ".git")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
