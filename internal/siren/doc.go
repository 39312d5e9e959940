// Package siren decodes the daemon's hypermedia documents.
//
// A Resource carries named links (`_links`) and, optionally, a list of
// Actions. An Action describes one next step: its HTTP method, target href,
// content type and the Fields the request must carry. Each Field is tagged
// with a ClassSet that autofill rules match against.
package siren
