package urlutil

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// JoinPath safely joins URL paths, handling trailing and leading slashes correctly
func JoinPath(base string, paths ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	// Join paths, ensuring proper slash handling
	allPaths := append([]string{u.Path}, paths...)
	u.Path = path.Join(allPaths...)

	// Preserve trailing slash if the last path component had one
	if len(paths) > 0 && strings.HasSuffix(paths[len(paths)-1], "/") {
		u.Path += "/"
	}

	return u.String(), nil
}

// Origin returns scheme://host[:port] of rawURL
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("URL %q has no origin", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

// StripQuery drops the query string and fragment. Unparseable input is returned unchanged.
func StripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
