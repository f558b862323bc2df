// Package voclient is the VOSpace client facade: the operations a caller
// actually drives (getNode, listdir, mkdir, delete, move, addProps, status,
// access) built on top of pkg/vofile's transport state machine and
// pkg/vonode's XML node model. It is the Go analogue of vos.py's Client
// class.
package voclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/cadc-nrc/govospace/pkg/voerrors"
	"github.com/cadc-nrc/govospace/pkg/vofile"
	"github.com/cadc-nrc/govospace/pkg/vonode"
	"github.com/cadc-nrc/govospace/pkg/voparse"
)

const defaultArchive = "vospace"

// DefaultBufferSize is the streaming copy chunk size, matching vos.py's
// BUFSIZE comment about keeping the number of I/O round trips small.
const DefaultBufferSize = 8 * 1024 * 1024

const defaultServerHost = "www.cadc.hia.nrc.gc.ca"
const defaultAuthority = "cadc.nrc.ca!vospace"

// filenamePattern bars anything but the characters CADC's service accepts
// in a node's leaf name.
var filenamePattern = regexp.MustCompile(`^[_\-()=+!,;:@&*$.\w~]*$`)

// Options configures a Client. The zero value is valid; unset fields take
// CADC's public defaults the way vos.py's Client.__init__ does.
type Options struct {
	// Archive names the storage archive new data nodes are written under.
	Archive string
	// RootNode is prefixed onto any uri passed to an operation that does
	// not already start with "vos:".
	RootNode string
	// DefaultAuthority is used when a uri carries no explicit authority.
	DefaultAuthority string
	// Servers maps a VOSpace authority to the host that serves it.
	Servers map[string]string
}

func (o *Options) setDefaults() {
	if o.Archive == "" {
		o.Archive = defaultArchive
	}
	if o.DefaultAuthority == "" {
		o.DefaultAuthority = defaultAuthority
	}
	if o.Servers == nil {
		o.Servers = map[string]string{
			"cadc.nrc.ca!vospace": defaultServerHost,
			"cadc.nrc.ca~vospace": defaultServerHost,
		}
	}
}

// Client drives VOSpace node operations over an *http.Client already bound
// to a client certificate (see pkg/vocred.Credential.NewClient).
type Client struct {
	http *http.Client
	opts Options
}

// New builds a Client. httpClient is typically the result of
// (*vocred.Credential).NewClient.
func New(httpClient *http.Client, opts Options) *Client {
	opts.setDefaults()
	return &Client{http: httpClient, opts: opts}
}

// fixURI prefixes RootNode onto a bare path, validates the vos: scheme and
// leaf name, and folds in the default authority — vos.py's fixURI.
func (c *Client) fixURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, "vos:") {
		uri = c.opts.RootNode + uri
	}
	parts := voparse.Parse(uri)
	if parts.Scheme != "vos" {
		return "", voerrors.InvalidArgument("invalid vospace URI: " + uri)
	}
	filename := path.Base(parts.Path)
	if !filenamePattern.MatchString(filename) {
		return "", voerrors.InvalidArgument("illegal vospace node name: " + filename)
	}
	host := parts.Authority
	if host == "" {
		host = c.opts.DefaultAuthority
	}
	clean := strings.Trim(path.Clean("/"+parts.Path), "/")
	return fmt.Sprintf("%s://%s/%s", parts.Scheme, host, clean), nil
}

func (c *Client) serverFor(authority string) string {
	if host, ok := c.opts.Servers[authority]; ok {
		return host
	}
	return authority
}

// getNodeURL builds the HTTPS URL for an operation against uri. A PUT
// targets CADC's hardcoded data-upload path; every other method targets the
// node-metadata endpoint, optionally carrying view/limit/uri query
// parameters (vos.py's getNodeURL).
func (c *Client) getNodeURL(uri string, method string, view string, limit *int, nextURI string) (string, error) {
	fixed, err := c.fixURI(uri)
	if err != nil {
		return "", err
	}
	parts := voparse.Parse(fixed)
	p := strings.Trim(parts.Path, "/")
	host := c.serverFor(parts.Authority)

	if method == http.MethodPut {
		return fmt.Sprintf("https://%s/data/pub/%s/%s", host, c.opts.Archive, p), nil
	}

	q := url.Values{}
	if limit != nil {
		q.Set("limit", strconv.Itoa(*limit))
	}
	if view != "" {
		q.Set("view", view)
	}
	if nextURI != "" {
		q.Set("uri", nextURI)
	}
	u := fmt.Sprintf("https://%s/vospace/nodes/%s", host, p)
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u, nil
}

func (c *Client) transferURL() string {
	return fmt.Sprintf("https://%s/vospace/synctrans", c.serverFor(c.opts.DefaultAuthority))
}

// openParams carries the query-string inputs getNodeURL needs for a GET/HEAD.
type openParams struct {
	view    string
	head    bool
	limit   *int
	nextURI string
}

func (c *Client) doOpen(ctx context.Context, uri string, method string, p openParams) (*vofile.VOFile, error) {
	u, err := c.getNodeURL(uri, method, p.view, p.limit, p.nextURI)
	if err != nil {
		return nil, err
	}
	httpMethod := method
	if p.head {
		httpMethod = http.MethodHead
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, u, nil)
	if err != nil {
		return nil, err
	}
	return vofile.Open(ctx, c.http, req)
}

func intPtr(i int) *int { return &i }

// GetNode fetches uri's node document. If loadChildren is true and the node
// is a container, its full child list is paginated in via the uri=<last
// child> continuation parameter until the server stops returning anything
// new — vos.py's getNode(uri, limit>0) loop, minus the client-unused
// page-size knob vos.py's "limit" parameter never actually applied to page
// size on the wire.
func (c *Client) GetNode(ctx context.Context, uri string, loadChildren bool) (*vonode.Node, error) {
	f, err := c.doOpen(ctx, uri, http.MethodGet, openParams{limit: intPtr(0)})
	if err != nil {
		return nil, err
	}
	n, err := vonode.Parse(f.Body())
	f.Close()
	if err != nil {
		return nil, err
	}

	if loadChildren && n.IsContainer() {
		n.ResetChildren()
		nextURI := ""
		for {
			pf, err := c.doOpen(ctx, uri, http.MethodGet, openParams{nextURI: nextURI})
			if err != nil {
				return nil, err
			}
			page, perr := vonode.Parse(pf.Body())
			pf.Close()
			if perr != nil {
				return nil, perr
			}
			children, _ := page.Children()
			if len(children) == 0 {
				break
			}
			added := false
			for _, child := range children {
				if n.AddChild(child) {
					nextURI = child.URI
					added = true
				}
			}
			if !added {
				break
			}
		}
	}
	return n, nil
}

// Listdir returns the leaf names of uri's children.
func (c *Client) Listdir(ctx context.Context, uri string) ([]string, error) {
	n, err := c.GetNode(ctx, uri, true)
	if err != nil {
		return nil, err
	}
	children, _ := n.Children()
	names := make([]string, 0, len(children))
	for _, ch := range children {
		names = append(names, ch.Name())
	}
	return names, nil
}

// IsDir reports whether uri exists and is a container. Like vos.py, any
// error (including not-found) reports false rather than propagating.
func (c *Client) IsDir(ctx context.Context, uri string) bool {
	n, err := c.GetNode(ctx, uri, false)
	if err != nil {
		return false
	}
	return n.IsContainer()
}

// Status reports whether uri's data view responds successfully to a HEAD,
// vos.py's status()/isfile() check.
func (c *Client) Status(ctx context.Context, uri string) bool {
	f, err := c.doOpen(ctx, uri, http.MethodGet, openParams{view: "data", head: true})
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// IsFile reports whether uri exists and serves a data view.
func (c *Client) IsFile(ctx context.Context, uri string) bool {
	return c.Status(ctx, uri)
}

// Access reports whether uri exists at all.
func (c *Client) Access(ctx context.Context, uri string) bool {
	_, err := c.GetNode(ctx, uri, false)
	return err == nil
}

// Mkdir creates a new container node at uri.
func (c *Client) Mkdir(ctx context.Context, uri string) error {
	fixed, err := c.fixURI(uri)
	if err != nil {
		return err
	}
	n := vonode.New(fixed, vonode.ContainerNode, nil)
	u, err := c.getNodeURL(uri, http.MethodPut, "", nil, "")
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, strings.NewReader(n.String()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/xml")
	f, err := vofile.Open(ctx, c.http, req)
	if err != nil {
		return err
	}
	return f.Close()
}

// Delete removes the node at uri.
func (c *Client) Delete(ctx context.Context, uri string) error {
	u, err := c.getNodeURL(uri, http.MethodDelete, "", nil, "")
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	f, err := vofile.Open(ctx, c.http, req)
	if err != nil {
		return err
	}
	return f.Close()
}

func (c *Client) post(ctx context.Context, uri string, n *vonode.Node) error {
	u, err := c.getNodeURL(uri, http.MethodPost, "", nil, "")
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(n.String()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/xml")
	f, err := vofile.Open(ctx, c.http, req)
	if err != nil {
		return err
	}
	return f.Close()
}

// Update POSTs node's full current XML back to the server unconditionally.
func (c *Client) Update(ctx context.Context, n *vonode.Node) error {
	return c.post(ctx, n.URI, n)
}

// AddProps applies changes (nil values tombstone the property) to uri,
// after dropping any entry whose value already matches what the server
// holds — vos.py's addProps, which only ever sends the diff.
func (c *Client) AddProps(ctx context.Context, uri string, changes map[string]*string) error {
	fixed, err := c.fixURI(uri)
	if err != nil {
		return err
	}
	stored, err := c.GetNode(ctx, uri, false)
	if err != nil {
		return err
	}

	filtered := make(map[string]*string, len(changes))
	for key, val := range changes {
		if val != nil {
			if sv, ok := stored.Property(key); ok && sv == *val {
				continue
			}
		}
		filtered[key] = val
	}
	if len(filtered) == 0 {
		return nil
	}

	n := vonode.New(fixed, stored.Type, nil)
	n.RemovePropertiesElements()
	n.InsertProperties(filtered)
	return c.post(ctx, uri, n)
}

// Move relocates srcURI to destURI via a synchronous transfer document,
// vos.py's move().
func (c *Client) Move(ctx context.Context, srcURI, destURI string) error {
	src, err := c.fixURI(srcURI)
	if err != nil {
		return err
	}
	dest, err := c.fixURI(destURI)
	if err != nil {
		return err
	}

	doc := etree.NewDocument()
	transfer := doc.CreateElement("transfer")
	transfer.CreateAttr("xmlns", vonode.VOSNS)
	transfer.CreateAttr("xmlns:vos", vonode.VOSNS)
	transfer.CreateElement("target").SetText(src)
	transfer.CreateElement("direction").SetText(dest)
	transfer.CreateElement("keepBytes").SetText("false")
	body, err := doc.WriteToString()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.transferURL(), strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/xml")
	f, err := vofile.Open(ctx, c.http, req)
	if err != nil {
		return err
	}
	return f.Close()
}
