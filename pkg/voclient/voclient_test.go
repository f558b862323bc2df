package voclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cadc-nrc/govospace/pkg/vonode"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return New(srv.Client(), Options{
		DefaultAuthority: "test!vospace",
		Servers:          map[string]string{"test!vospace": u.Host},
	})
}

func TestFixURIRejectsNonVOSScheme(t *testing.T) {
	c := New(http.DefaultClient, Options{})
	if _, err := c.fixURI("http://example.com/x"); err == nil {
		t.Fatal("expected an error for a non-vos scheme")
	}
}

func TestFixURIRejectsIllegalName(t *testing.T) {
	c := New(http.DefaultClient, Options{})
	if _, err := c.fixURI("vos://test!vospace/bad name?"); err == nil {
		t.Fatal("expected an error for an illegal node name")
	}
}

func TestGetNodeURLPutTargetsDataPath(t *testing.T) {
	c := New(http.DefaultClient, Options{
		Archive:          "myarchive",
		DefaultAuthority: "test!vospace",
		Servers:          map[string]string{"test!vospace": "host.example"},
	})
	u, err := c.getNodeURL("vos://test!vospace/a/b", http.MethodPut, "", nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if u != "https://host.example/data/pub/myarchive/a/b" {
		t.Fatalf("got %q", u)
	}
}

func TestMkdirAndGetNode(t *testing.T) {
	var stored string
	mux := http.NewServeMux()
	mux.HandleFunc("/data/pub/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		stored = string(body)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/vospace/nodes/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(stored))
	})
	srv := httptest.NewTLSServer(mux)
	defer srv.Close()

	c := testClient(t, srv)
	ctx := context.Background()

	require.NoError(t, c.Mkdir(ctx, "vos://test!vospace/dir"))
	n, err := c.GetNode(ctx, "vos://test!vospace/dir", false)
	require.NoError(t, err)
	require.True(t, n.IsContainer(), "expected a container node back")
}

func TestDeleteSendsDELETE(t *testing.T) {
	var gotMethod string
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
	}))
	defer srv.Close()

	c := testClient(t, srv)
	if err := c.Delete(context.Background(), "vos://test!vospace/x"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Fatalf("method = %q, want DELETE", gotMethod)
	}
}

func TestStatusFollowsHeadView(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %q, want HEAD", r.Method)
		}
		if r.URL.Query().Get("view") != "data" {
			t.Errorf("view query param = %q, want data", r.URL.Query().Get("view"))
		}
	}))
	defer srv.Close()

	c := testClient(t, srv)
	if !c.Status(context.Background(), "vos://test!vospace/x") {
		t.Fatal("expected Status true")
	}
}

func TestListdirPaginates(t *testing.T) {
	root := `<node xmlns="http://www.ivoa.net/xml/VOSpace/v2.0" uri="vos://test!vospace/dir" type="vos:ContainerNode"><nodes/></node>`
	page1 := `<node xmlns="http://www.ivoa.net/xml/VOSpace/v2.0" uri="vos://test!vospace/dir" type="vos:ContainerNode">
		<nodes><node uri="vos://test!vospace/dir/a" type="vos:DataNode"/></nodes></node>`
	page2 := `<node xmlns="http://www.ivoa.net/xml/VOSpace/v2.0" uri="vos://test!vospace/dir" type="vos:ContainerNode">
		<nodes><node uri="vos://test!vospace/dir/b" type="vos:DataNode"/></nodes></node>`
	page3 := `<node xmlns="http://www.ivoa.net/xml/VOSpace/v2.0" uri="vos://test!vospace/dir" type="vos:ContainerNode"><nodes/></node>`

	calls := 0
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		next := r.URL.Query().Get("uri")
		switch {
		case r.URL.Query().Get("limit") == "0":
			w.Write([]byte(root))
		case next == "":
			w.Write([]byte(page1))
		case next == "vos://test!vospace/dir/a":
			w.Write([]byte(page2))
		default:
			w.Write([]byte(page3))
		}
	}))
	defer srv.Close()

	c := testClient(t, srv)
	names, err := c.Listdir(context.Background(), "vos://test!vospace/dir")
	if err != nil {
		t.Fatalf("Listdir: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("names = %v, want [a b]", names)
	}
}

func TestCopyUpload(t *testing.T) {
	var received []byte
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			received, _ = io.ReadAll(r.Body)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv)
	dir := t.TempDir()
	src := dir + "/in.txt"
	if err := os.WriteFile(src, []byte("hello vospace"), 0o600); err != nil {
		t.Fatal(err)
	}

	res, err := c.Copy(context.Background(), src, "vos://test!vospace/out.txt", false, nil)
	require.NoError(t, err)
	require.EqualValues(t, len("hello vospace"), res.BytesCopied)
	require.Equal(t, "hello vospace", string(received))
}

func TestNodeNewHelper(t *testing.T) {
	n := vonode.New("vos://test!vospace/a", vonode.DataNode, nil)
	require.Contains(t, n.String(), "vos:DataNode")
}
