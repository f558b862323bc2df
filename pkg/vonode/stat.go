package vonode

import (
	"strconv"
	"time"
)

// Stat is the POSIX-like summary spec.md §4.3 derives from a node's
// properties, the Go analogue of vos.py's Node.setattr()/getInfo(): date,
// length and permission properties folded into fields an os.FileInfo-style
// caller can reason about without knowing the VOSpace property names.
type Stat struct {
	Size    int64
	ModTime time.Time
	IsDir   bool
	// Mode mirrors a Unix permission mode: owner always rwx, other-read
	// tracks ispublic, group-read/write track groupread/groupwrite being
	// non-empty. There is no notion of owner-write over the wire; a node
	// either accepts a PUT from its owner or it doesn't, independent of
	// this bit.
	Mode int
	// GroupRead and GroupWrite carry the raw group URIs/names, "" if unset.
	GroupRead  string
	GroupWrite string
	// MD5 is the node's reported content hash, "" if the node has none
	// (e.g. an empty or not-yet-uploaded data node, or any container).
	MD5 string
}

// Stat derives a Stat snapshot from the node's current properties.
func (n *Node) Stat() Stat {
	s := Stat{IsDir: n.IsContainer()}

	if v, ok := n.Property("length"); ok {
		if sz, err := strconv.ParseInt(v, 10, 64); err == nil {
			s.Size = sz
		}
	}
	if v, ok := n.Property("date"); ok {
		if t, err := parseVOSDate(v); err == nil {
			s.ModTime = t
		}
	}
	if v, ok := n.Property("MD5"); ok {
		s.MD5 = v
	}

	s.GroupRead = normalizeGroup(n.GroupRead())
	s.GroupWrite = normalizeGroup(n.GroupWrite())

	const ownerRWX = 0o700
	s.Mode = ownerRWX
	if n.IsPublic() {
		s.Mode |= 0o004
	}
	if s.GroupRead != "" {
		s.Mode |= 0o040
	}
	if s.GroupWrite != "" {
		s.Mode |= 0o020
	}
	return s
}

// normalizeGroup folds the wire sentinel "NONE" (vos.py's default for an
// unset groupread/groupwrite property) onto "", matching this field's
// documented "" if unset contract.
func normalizeGroup(v string) string {
	if v == "NONE" {
		return ""
	}
	return v
}

// parseVOSDate accepts the handful of timestamp formats the service has been
// observed to use for the "date" property; vos.py's setattr similarly tries
// ISO-8601 with and without fractional seconds.
func parseVOSDate(v string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
	}
	var firstErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// Info is the ls-l style summary spec.md's supplemented feature set adds,
// grounded on vos.py's getInfoList: a flattened view of a node plus its
// stat, ready for a directory-listing caller to format without re-deriving
// anything from the raw XML.
type Info struct {
	Name string
	URI  string
	Type Type
	Stat Stat
}

// InfoOf builds an Info summary for n.
func InfoOf(n *Node) Info {
	return Info{Name: n.Name(), URI: n.URI, Type: n.Type, Stat: n.Stat()}
}

// InfoList builds an Info summary for n and each of its currently loaded
// children — it does not trigger a fetch, matching vos.py's getInfoList
// which only ever summarizes nodes already resident in memory.
func InfoList(n *Node) []Info {
	out := []Info{InfoOf(n)}
	children, _ := n.Children()
	for _, c := range children {
		out = append(out, InfoOf(c))
	}
	return out
}
