package voclient

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/cadc-nrc/govospace/pkg/voerrors"
	"github.com/cadc-nrc/govospace/pkg/vofile"
	"github.com/cadc-nrc/govospace/pkg/vomime"
)

// emptyMD5 is the hash of a zero-byte file, the fallback vos.py's copy()
// compares against when the remote node (the destination of an upload, the
// source of a download) carries no MD5 property or cannot be fetched.
const emptyMD5 = "d41d8cd98f00b204e9800998ecf8427e"

// CopyResult reports what a Copy actually moved.
type CopyResult struct {
	BytesCopied int64
	MD5         string
}

// Copy streams src to dest, exactly one of which must be a "vos:" URI — the
// other is a local filesystem path — hashing the stream incrementally as it
// goes. If verifyMD5 is true the copy is accepted only if the resulting
// hash matches the remote node's MD5 property; otherwise the copy is
// accepted only if its byte count matches the source's reported size.
// progress, if non-nil, receives every byte written as it is copied.
// vos.py's Client.copy.
func (c *Client) Copy(ctx context.Context, src, dest string, verifyMD5 bool, progress io.Writer) (CopyResult, error) {
	fromRemote := isVOSURI(src)
	toRemote := isVOSURI(dest)
	if fromRemote == toRemote {
		return CopyResult{}, voerrors.InvalidArgument("copy requires exactly one of src/dest to be a vos: URI")
	}

	var in io.ReadCloser
	var out io.WriteCloser
	var srcSize int64
	var err error

	if fromRemote {
		n, gerr := c.GetNode(ctx, src, false)
		if gerr != nil {
			return CopyResult{}, gerr
		}
		srcSize = n.Stat().Size
		f, oerr := c.doOpen(ctx, src, http.MethodGet, openParams{view: "data"})
		if oerr != nil {
			return CopyResult{}, oerr
		}
		in = f.Body()
		out, err = os.Create(dest)
		if err != nil {
			in.Close()
			return CopyResult{}, err
		}
	} else {
		fi, serr := os.Stat(src)
		if serr != nil {
			return CopyResult{}, serr
		}
		srcSize = fi.Size()
		localFile, oerr := os.Open(src)
		if oerr != nil {
			return CopyResult{}, oerr
		}
		in = localFile
		out, err = c.openForWrite(ctx, dest, srcSize)
		if err != nil {
			localFile.Close()
			return CopyResult{}, err
		}
	}
	defer in.Close()

	hasher := md5.New()
	var reader io.Reader = io.TeeReader(in, hasher)
	if progress != nil {
		reader = io.TeeReader(reader, progress)
	}

	// out is wrapped so io.CopyBuffer cannot hand the copy to an *os.File's
	// ReadFrom, which would not use buf.
	buf := make([]byte, DefaultBufferSize)
	written, cerr := io.CopyBuffer(struct{ io.Writer }{out}, reader, buf)
	closeErr := out.Close()
	if cerr != nil {
		return CopyResult{}, cerr
	}
	if closeErr != nil {
		return CopyResult{}, closeErr
	}

	sum := hex.EncodeToString(hasher.Sum(nil))

	if verifyMD5 {
		checkURI := dest
		if fromRemote {
			checkURI = src
		}
		checkMD5 := emptyMD5
		if checkNode, nerr := c.GetNode(ctx, checkURI, false); nerr == nil {
			if v, ok := checkNode.Property("MD5"); ok {
				checkMD5 = v
			}
		}
		if checkMD5 != sum {
			return CopyResult{}, voerrors.IntegrityError(fmt.Sprintf("MD5 mismatch copying %s to %s", src, dest))
		}
		return CopyResult{BytesCopied: written, MD5: sum}, nil
	}

	if written != srcSize {
		return CopyResult{}, voerrors.IntegrityError(fmt.Sprintf("size mismatch copying %s to %s: wrote %d, expected %d", src, dest, written, srcSize))
	}
	return CopyResult{BytesCopied: written, MD5: sum}, nil
}

func isVOSURI(s string) bool {
	return len(s) >= 4 && s[:4] == "vos:"
}

// pipeUpload streams writes into an in-flight PUT request body over a pipe;
// Close blocks until the server has responded, surfacing any transport or
// status error from the PUT as the Close error.
type pipeUpload struct {
	pw   *io.PipeWriter
	done chan error
}

func (p *pipeUpload) Write(b []byte) (int, error) { return p.pw.Write(b) }

func (p *pipeUpload) Close() error {
	p.pw.Close()
	return <-p.done
}

// openForWrite begins a PUT to uri and returns a writer whose bytes are
// streamed straight into the request body. The request declares size as its
// Content-Length, so net/http frames the body with that length rather than
// with chunked transfer encoding (a size of 0 is sent chunked).
func (c *Client) openForWrite(ctx context.Context, uri string, size int64) (io.WriteCloser, error) {
	u, err := c.getNodeURL(uri, http.MethodPut, "", nil, "")
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, pr)
	if err != nil {
		return nil, err
	}
	req.ContentLength = size
	contentType := vomime.Guess(uri)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	done := make(chan error, 1)
	go func() {
		f, oerr := vofile.Open(ctx, c.http, req)
		if oerr != nil {
			pr.CloseWithError(oerr)
			done <- oerr
			return
		}
		defer f.Close()
		io.Copy(io.Discard, f.Body())
		done <- nil
	}()

	return &pipeUpload{pw: pw, done: done}, nil
}
