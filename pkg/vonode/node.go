// Package vonode implements the VOSpace node model: a typed tree node with
// an extensible property map, ACL-derived stat attributes, and a lazily
// loaded child list, plus its VOSpace 2.0 XML wire representation.
//
// The backing representation is a mutable *etree.Document rather than a
// fixed encoding/xml struct, mirroring vos.py's use of
// xml.etree.ElementTree: properties are individual elements that get
// appended, mutated in place, or marked with a tombstone attribute, not
// fields on a fixed schema.
package vonode

import (
	"io"
	"os"
	"path"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"

	"github.com/cadc-nrc/govospace/pkg/voerrors"
	"github.com/cadc-nrc/govospace/pkg/vomime"
)

// propNilAttr marks a property element whose value has been tombstoned
// (deleted-but-pending-flush). vos.py uses the namespaced "xsi:nil"
// attribute for this; we use a plain attribute name to sidestep etree's
// namespace-prefix bookkeeping. The plain "nil" attribute is also what the
// server receives when a tombstoned node is posted by the client facade's
// Update or AddProps.
const propNilAttr = "nil"

// Node is an in-memory VOSpace node: its URI, type, property map, and,
// for a container, its children. A Node may be shared for read across
// goroutines, but any mutating call (SetProperty, ChangeProp, Chmod,
// Chwgrp, Chrgrp, SetPublic) requires exclusive access by the caller — see
// spec.md §5.
type Node struct {
	doc      *etree.Document
	el       *etree.Element
	URI      string
	Type     Type
	children childList
}

// New builds a Node locally from a uri, type and property set, the
// constructor half of vos.py's overloaded Node.__init__/create. Properties
// with a nil value are omitted entirely (a brand-new node has nothing to
// tombstone). If properties has no "type" entry, one is guessed from the
// URI's leaf name via vomime.
func New(uri string, typ Type, properties map[string]*string) *Node {
	doc := etree.NewDocument()
	root := doc.CreateElement("node")
	root.CreateAttr("xmlns", VOSNS)
	root.CreateAttr("xmlns:vos", VOSNS)
	root.CreateAttr("xmlns:xsi", XSINS)
	root.CreateAttr("type", string(typ))
	root.CreateAttr("busy", "false")
	root.CreateAttr("uri", uri)

	propsEl := root.CreateElement("properties")
	for key, val := range properties {
		if val == nil {
			continue
		}
		p := propsEl.CreateElement("property")
		p.CreateAttr("uri", IVOAURL+"#"+key)
		p.CreateAttr("readOnly", "false")
		p.SetText(*val)
	}
	if _, ok := properties["type"]; !ok {
		if guessed := vomime.Guess(uri); guessed != "" {
			p := propsEl.CreateElement("property")
			p.CreateAttr("uri", IVOAURL+"#type")
			p.CreateAttr("readOnly", "false")
			p.SetText(guessed)
		}
	}

	accepts := root.CreateElement("accepts")
	accepts.CreateElement("view").CreateAttr("uri", IVOAURL+"#defaultview")

	provides := root.CreateElement("provides")
	provides.CreateElement("view").CreateAttr("uri", IVOAURL+"#defaultview")
	provides.CreateElement("view").CreateAttr("uri", CADCURL+"#rssview")
	if typ.IsData() {
		provides.CreateElement("view").CreateAttr("uri", CADCURL+"#dataview")
	}

	if typ.IsContainer() {
		root.CreateElement("nodes")
	}

	return wrapMust(doc, root)
}

// Parse reads a <node> XML document from r, the Go analogue of
// vos.py's Node(dom.getroot()) after ET.parse(). Parsing fails if the root
// element carries no "type" attribute, per spec.md's parse invariant.
func Parse(r io.Reader) (*Node, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, errors.Wrap(err, "vonode: parsing node XML")
	}
	root := doc.Root()
	if root == nil {
		return nil, voerrors.InvalidArgument("empty node document")
	}
	return wrap(doc, root)
}

func wrap(doc *etree.Document, root *etree.Element) (*Node, error) {
	typ := root.SelectAttrValue("type", "")
	if typ == "" {
		return nil, voerrors.InvalidArgument("node XML has no type attribute")
	}
	n := &Node{
		doc:      doc,
		el:       root,
		URI:      root.SelectAttrValue("uri", ""),
		Type:     Type(typ),
		children: unloadedChildren(),
	}
	if n.Type.IsContainer() {
		n.loadEmbeddedChildren()
	}
	return n, nil
}

// wrap without error, used by New() where inputs are under our own control.
func wrapMust(doc *etree.Document, root *etree.Element) *Node {
	n, err := wrap(doc, root)
	if err != nil {
		panic(err) // unreachable: New() always sets a type attribute
	}
	return n
}

func (n *Node) loadEmbeddedChildren() {
	nodesEl := n.el.SelectElement("nodes")
	if nodesEl == nil {
		return
	}
	for _, childEl := range nodesEl.SelectElements("node") {
		child, err := wrap(n.doc, childEl)
		if err != nil {
			continue
		}
		n.children.append(child)
	}
}

// Name returns the node's leaf name, the basename of its URI's path.
func (n *Node) Name() string {
	return path.Base(n.URI)
}

// IsContainer reports whether this node is a container (directory-like).
func (n *Node) IsContainer() bool { return n.Type.IsContainer() }

// propertiesElements returns every <properties> element under the node,
// there should be exactly one but changeProp (below) tolerates more, as
// vos.py's findall(PROPERTIES) does.
func (n *Node) propertiesElements() []*etree.Element {
	return n.el.SelectElements("properties")
}

func propName(p *etree.Element) string {
	uri := p.SelectAttrValue("uri", "")
	_, frag, _ := strings.Cut(uri, "#")
	return frag
}

// findProperty returns the first <property> element named key, across all
// <properties> groups, or nil.
func (n *Node) findProperty(key string) *etree.Element {
	for _, props := range n.propertiesElements() {
		for _, p := range props.SelectElements("property") {
			if propName(p) == key {
				return p
			}
		}
	}
	return nil
}

// PropertyValue returns the current value of property key. tombstoned is
// true if the property is present but marked nil (pending delete); present
// is false only if the key does not appear in the property map at all.
func (n *Node) PropertyValue(key string) (value string, tombstoned bool, present bool) {
	p := n.findProperty(key)
	if p == nil {
		return "", false, false
	}
	if p.SelectAttrValue(propNilAttr, "") == "true" {
		return "", true, true
	}
	return p.Text(), false, true
}

// Property returns the value of key and whether it is present with a
// non-tombstoned value — the common case callers want.
func (n *Node) Property(key string) (string, bool) {
	v, tombstoned, present := n.PropertyValue(key)
	if !present || tombstoned {
		return "", false
	}
	return v, true
}

// Properties returns a snapshot of every non-tombstoned property.
func (n *Node) Properties() map[string]string {
	out := map[string]string{}
	for _, props := range n.propertiesElements() {
		for _, p := range props.SelectElements("property") {
			if p.SelectAttrValue(propNilAttr, "") == "true" {
				continue
			}
			out[propName(p)] = p.Text()
		}
	}
	return out
}

// ExtendedProperties returns the subset of Properties that are user
// extensible, i.e. not in the reserved set (spec.md §3).
func (n *Node) ExtendedProperties() map[string]string {
	out := map[string]string{}
	for k, v := range n.Properties() {
		if !IsReservedProperty(k) {
			out[k] = v
		}
	}
	return out
}

// IsPublic reports the node's current ispublic property.
func (n *Node) IsPublic() bool {
	v, _ := n.Property("ispublic")
	return v == "true"
}

// GroupRead returns the node's current groupread property, or "" if unset.
func (n *Node) GroupRead() string {
	v, _ := n.Property("groupread")
	return v
}

// GroupWrite returns the node's current groupwrite property, or "" if unset.
func (n *Node) GroupWrite() string {
	v, _ := n.Property("groupwrite")
	return v
}

// SetProperty appends a brand new <property> element for key, even if one
// already exists. Raw primitive kept for parity with vos.py's
// setProperty; callers that want "set-or-update" semantics should use
// ChangeProp instead.
func (n *Node) SetProperty(key, value string) {
	props := n.el.SelectElement("properties")
	if props == nil {
		props = n.el.CreateElement("properties")
	}
	p := props.CreateElement("property")
	p.CreateAttr("uri", IVOAURL+"#"+key)
	p.CreateAttr("readOnly", "false")
	p.SetText(value)
}

// ChangeProp sets property key to value, or tombstones it if value is nil.
// Return value mirrors vos.py's changeProp: 1 if a property was set or
// newly appended, 0 if it was tombstoned or the call was a no-op (deleting
// a property that was never present).
func (n *Node) ChangeProp(key string, value *string) int {
	p := n.findProperty(key)
	if p != nil {
		if value == nil {
			p.CreateAttr(propNilAttr, "true")
			p.SetText("")
			return 0
		}
		p.SetText(*value)
		return 1
	}
	if value == nil {
		return 0
	}
	props := n.el.SelectElement("properties")
	if props == nil {
		props = n.el.CreateElement("properties")
	}
	np := props.CreateElement("property")
	np.CreateAttr("readOnly", "false")
	np.CreateAttr("uri", IVOAURL+"#"+key)
	np.SetText(*value)
	return 1
}

func strPtr(s string) *string { return &s }

// setIfChanged sets key to v unless it already holds v, and reports whether
// it wrote anything.
func (n *Node) setIfChanged(key, v string) bool {
	if cur, ok := n.Property(key); ok && cur == v {
		return false
	}
	return n.ChangeProp(key, strPtr(v)) > 0
}

// SetPublic sets the ispublic property and returns true if it changed.
func (n *Node) SetPublic(public bool) bool {
	v := "false"
	if public {
		v = "true"
	}
	return n.setIfChanged("ispublic", v)
}

// Chwgrp sets the groupwrite property to group and returns true if it changed.
func (n *Node) Chwgrp(group string) bool {
	return n.setIfChanged("groupwrite", group)
}

// Chrgrp sets the groupread property to group and returns true if it changed.
func (n *Node) Chrgrp(group string) bool {
	return n.setIfChanged("groupread", group)
}

// Chmod maps a Unix permission mode onto ispublic/groupread/groupwrite
// property mutations, per spec.md §4.3: other-read controls ispublic;
// group-read present keeps the current groupread value (cleared to "" if
// absent); group-write present keeps the current groupwrite value (cleared
// to "" if absent). Returns true iff any property changed.
func (n *Node) Chmod(mode os.FileMode) bool {
	const (
		otherRead = 0o004
		groupRead = 0o040
		groupWrite = 0o020
	)
	changed := false
	if n.SetPublic(mode&otherRead != 0) {
		changed = true
	}

	if mode&groupRead != 0 {
		if n.Chrgrp(n.GroupRead()) {
			changed = true
		}
	} else {
		if n.Chrgrp("") {
			changed = true
		}
	}

	if mode&groupWrite != 0 {
		if n.Chwgrp(n.GroupWrite()) {
			changed = true
		}
	} else {
		if n.Chwgrp("") {
			changed = true
		}
	}
	return changed
}

// Children returns the node's children and whether they have been loaded
// yet. For a data node it always returns (nil, true) — data nodes never
// have children.
func (n *Node) Children() ([]*Node, bool) {
	if !n.IsContainer() {
		return nil, true
	}
	return n.children.nodes, n.children.loaded
}

// AddChild appends child to the node's child list, used by the client
// facade while paginating a container listing. It returns false if a node
// with the same URI was already present (spec.md §4.5 de-duplication).
func (n *Node) AddChild(child *Node) bool {
	return n.children.append(child)
}

// ResetChildren marks the child list as freshly loaded-and-empty, the
// starting point for a paginated getNode call.
func (n *Node) ResetChildren() {
	n.children.reset()
}

// String serializes the node back to its VOSpace XML representation.
func (n *Node) String() string {
	s, err := n.doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}

// WriteTo serializes the node's XML to w.
func (n *Node) WriteTo(w io.Writer) (int64, error) {
	return n.doc.WriteTo(w)
}

// RemovePropertiesElements drops every <properties> block from the node's
// XML, used by the client facade's addProps to rebuild the properties
// section from a filtered map before re-serializing (vos.py's addProps).
func (n *Node) RemovePropertiesElements() {
	for _, props := range n.propertiesElements() {
		n.el.RemoveChild(props)
	}
}

// InsertProperties rebuilds a single <properties> element from props (nil
// values tombstoned) and inserts it as the node's first child element.
func (n *Node) InsertProperties(props map[string]*string) {
	propsEl := etree.NewElement("properties")
	for key, val := range props {
		p := propsEl.CreateElement("property")
		p.CreateAttr("readOnly", "false")
		p.CreateAttr("uri", IVOAURL+"#"+key)
		if val == nil {
			p.CreateAttr(propNilAttr, "true")
		} else {
			p.SetText(*val)
		}
	}
	n.el.InsertChildAt(0, propsEl)
}
