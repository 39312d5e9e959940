package siren

import (
	"net/url"
	"strings"
)

// ResolveHref resolves a link href against the daemon base URL. Absolute
// hrefs are kept. Daemon-relative hrefs are appended to the base path, so
// base http://host/api and href /swaps give http://host/api/swaps.
func ResolveHref(base *url.URL, href string) (*url.URL, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return nil, err
	}
	if base == nil || ref.IsAbs() || ref.Host != "" {
		return ref, nil
	}
	dir := *base
	if !strings.HasSuffix(dir.Path, "/") {
		dir.Path += "/"
		if dir.RawPath != "" {
			dir.RawPath += "/"
		}
	}
	ref.Path = strings.TrimPrefix(ref.Path, "/")
	ref.RawPath = strings.TrimPrefix(ref.RawPath, "/")
	return dir.ResolveReference(ref), nil
}
