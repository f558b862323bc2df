package vonode

// Type is a VOSpace node type, a tagged variant over the wire strings
// (prefixed "vos:") the service uses. Unlike vos.py, which just compares
// raw "vos:ContainerNode" strings everywhere, Type makes the three known
// kinds explicit and keeps an escape hatch (Unknown) for anything else the
// server might send, so stat computation and XML emission can switch over
// it exhaustively instead of chaining string comparisons.
type Type string

const (
	// ContainerNode is a directory-like node that can hold children.
	ContainerNode Type = "vos:ContainerNode"
	// DataNode is a leaf, file-like node.
	DataNode Type = "vos:DataNode"
	// LinkNode is a symbolic reference to another node.
	LinkNode Type = "vos:LinkNode"
)

// Unknown wraps any node type string the service sends that isn't one of
// the three known kinds above. It round-trips through XML unchanged.
func Unknown(raw string) Type { return Type(raw) }

// IsContainer reports whether t is ContainerNode.
func (t Type) IsContainer() bool { return t == ContainerNode }

// IsData reports whether t is DataNode.
func (t Type) IsData() bool { return t == DataNode }

// IsLink reports whether t is LinkNode.
func (t Type) IsLink() bool { return t == LinkNode }

// IsKnown reports whether t is one of the three recognized kinds.
func (t Type) IsKnown() bool {
	switch t {
	case ContainerNode, DataNode, LinkNode:
		return true
	default:
		return false
	}
}

// String returns the raw wire value, e.g. "vos:ContainerNode".
func (t Type) String() string { return string(t) }
