// Package vomime guesses a MIME type for a node, the same way vos.py's
// create() calls mimetypes.guess_type(uri) to seed the node's "type"
// property, and the way VOFile.open() guesses a Content-Type for PUT.
//
// Guess is purely name-based, matching mimetypes.guess_type's extension
// lookup; it wraps the standard library's extension table with a small
// override table for the archival data formats a VOSpace service commonly
// stores, the same layering reva's pkg/mime does over its own
// general-purpose sniffer. SniffUpload detects a type from content bytes
// instead (via github.com/gabriel-vasile/mimetype, which vos.py's text-only
// guess had no analogue of), for data whose name has an unrecognized or
// absent extension.
package vomime

import (
	"bytes"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffHeaderSize bounds how many bytes SniffUpload buffers to detect a
// type; mimetype never needs more than a few KB of header to classify a
// file, per its own internal matcher table.
const sniffHeaderSize = 4096

var overrides = map[string]string{
	".fits": "application/fits",
	".fit":  "application/fits",
	".hdf5": "application/x-hdf5",
	".vot":  "application/x-votable+xml",
}

// Guess returns a best-effort MIME type for name, or "" if none could be
// determined. It never inspects file content.
func Guess(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	if m, ok := overrides[ext]; ok {
		return m
	}
	return mime.TypeByExtension(ext)
}

// SniffUpload detects the MIME type of the data r produces by reading its
// header bytes. Since detection consumes those bytes from r, it returns a
// reader that replays them ahead of whatever remains of r — callers must
// upload from the returned reader, not the original. The client facade's
// upload path does not call it: when Guess(name) comes back empty there, the
// PUT is sent as application/octet-stream.
func SniffUpload(r io.Reader) (mimeType string, body io.Reader, err error) {
	header := make([]byte, sniffHeaderSize)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nil, err
	}
	header = header[:n]
	mtype := mimetype.Detect(header)
	return mtype.String(), io.MultiReader(bytes.NewReader(header), r), nil
}
