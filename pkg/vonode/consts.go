package vonode

// Namespace URIs used in the VOSpace 2.0 wire format, mirrored from vos.py's
// Node class constants (IVOAURL, CADCURL, VOSNS, XSINS).
const (
	IVOAURL = "ivo://ivoa.net/vospace/core"
	CADCURL = "ivo://cadc.nrc.ca/vospace/core"
	VOSNS   = "http://www.ivoa.net/xml/VOSpace/v2.0"
	XSINS   = "http://www.w3.org/2001/XMLSchema-instance"
)

// reservedProperties are the property names spec.md designates as non
// user-extensible: they carry protocol-level meaning rather than being
// free-form extended attributes.
var reservedProperties = map[string]struct{}{
	"description": {},
	"type":        {},
	"encoding":    {},
	"MD5":         {},
	"length":      {},
	"creator":     {},
	"date":        {},
	"groupread":   {},
	"groupwrite":  {},
	"ispublic":    {},
}

// IsReservedProperty reports whether name is one of the protocol-reserved
// property keys rather than a user-extensible extended attribute.
func IsReservedProperty(name string) bool {
	_, ok := reservedProperties[name]
	return ok
}
