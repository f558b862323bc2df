// Package vofile implements the per-request state machine that drives a
// single HTTP request (GET, HEAD, PUT, POST or DELETE) against the VOSpace
// service: redirect-follow,
// Retry-After-bounded retry on 503, and response-status classification into
// the client's typed errors. It is the Go analogue of vos.py's VOFile class,
// grounded on reva's eosgrpc.EOSHTTPClient GETFile/PUTFile loop — the same
// shape of explicit for-loop over an *http.Client with CheckRedirect
// disabled so redirects can be re-issued with the right method and headers.
package vofile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cadc-nrc/govospace/pkg/voerrors"
	"github.com/cadc-nrc/govospace/pkg/volog"
)

// MaxRedirects bounds how many 302/303 hops a single operation will follow
// before giving up, guarding against a misbehaving or looping service.
const MaxRedirects = 10

// MaxRetries bounds how many 503 Retry-After cycles a single operation will
// absorb before giving up.
const MaxRetries = 5

// DefaultRetryAfter is used when a 503 response's Retry-After header is
// missing, unparsable, a negative number of seconds, or an HTTP date that
// has already passed. "Retry-After: 0" retries without waiting.
const DefaultRetryAfter = 5 * time.Second

// MaxRetryAfter caps how long a single Retry-After sleep is allowed to be,
// regardless of what the server asks for.
const MaxRetryAfter = 2 * time.Minute

// VOFile drives one HTTP request through to a final, classified outcome.
// Each VOFile is single-use: build one per request via Open, consume the
// response, then discard it.
type VOFile struct {
	client *http.Client
	req    *http.Request
	resp   *http.Response
}

// Open sends req (already fully built, including body for a PUT) and runs
// it through the status-code state machine described in spec.md §5:
// 200/206 succeed immediately, 302/303 redirect and resend, 503 sleeps for
// Retry-After and resends, 401/404 map onto typed errors, 409 maps onto
// AlreadyExists when the body names DuplicateNode, and 416 succeeds with an
// empty body. Any other status (including any other 409) becomes an
// *voerrors.Unexpected. The returned VOFile's Body
// is the live response body; callers must Close it.
func Open(ctx context.Context, client *http.Client, req *http.Request) (*VOFile, error) {
	log := volog.FromContext(ctx)
	req = req.WithContext(ctx)
	if req.Header.Get("X-Trace-ID") == "" {
		req.Header.Set("X-Trace-ID", uuid.NewString())
	}

	redirects := 0
	retries := 0
	body := req.Body

	for {
		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "vofile")
		}

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
			return &VOFile{client: client, req: req, resp: resp}, nil

		case resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusSeeOther:
			loc, lerr := resp.Location()
			drainAndClose(resp)
			if lerr != nil {
				return nil, errors.Wrap(lerr, "vofile: redirect with no Location")
			}
			redirects++
			if redirects > MaxRedirects {
				return nil, voerrors.ConnectionRefused(fmt.Sprintf("too many redirects (>%d) for %s", MaxRedirects, req.URL))
			}
			if body != nil {
				return nil, voerrors.NotConnected("cannot follow a redirect for a request with a non-seekable body")
			}
			log.Debug().Str("location", loc.String()).Int("n", redirects).Msg("following redirect")
			next, nerr := http.NewRequestWithContext(ctx, req.Method, loc.String(), nil)
			if nerr != nil {
				return nil, errors.Wrap(nerr, "vofile: building redirected request")
			}
			next.Header = req.Header.Clone()
			req = next
			continue

		case resp.StatusCode == http.StatusServiceUnavailable:
			wait := retryAfter(resp)
			drainAndClose(resp)
			if body != nil {
				return nil, voerrors.NotConnected("cannot retry a request with a non-seekable body after 503")
			}
			retries++
			if retries > MaxRetries {
				return nil, voerrors.ConnectionRefused(fmt.Sprintf("service unavailable after %d retries for %s", MaxRetries, req.URL))
			}
			log.Warn().Dur("wait", wait).Int("n", retries).Msg("503 from service, retrying after delay")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			continue

		case resp.StatusCode == http.StatusUnauthorized:
			defer resp.Body.Close()
			return nil, voerrors.PermissionDenied(describe(resp))

		case resp.StatusCode == http.StatusNotFound:
			defer resp.Body.Close()
			return nil, voerrors.NotFound(describe(resp))

		case resp.StatusCode == http.StatusConflict:
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
			resp.Body.Close()
			if bytes.Contains(raw, []byte("DuplicateNode")) {
				return nil, voerrors.AlreadyExists(describe(resp))
			}
			return nil, &voerrors.Unexpected{Status: resp.StatusCode, Reason: resp.Status, URL: req.URL.String()}

		case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
			// An empty range past EOF; checkstatus treats this as success with
			// no bytes, not an error.
			return &VOFile{client: client, req: req, resp: resp}, nil

		default:
			defer resp.Body.Close()
			return nil, &voerrors.Unexpected{Status: resp.StatusCode, Reason: resp.Status, URL: req.URL.String()}
		}
	}
}

// Body returns the live response body reader, valid until Close.
func (f *VOFile) Body() io.ReadCloser { return f.resp.Body }

// ContentLength returns the response's advertised content length, -1 if
// unknown.
func (f *VOFile) ContentLength() int64 { return f.resp.ContentLength }

// Header returns the response headers.
func (f *VOFile) Header() http.Header { return f.resp.Header }

// Close releases the underlying response body.
func (f *VOFile) Close() error {
	if f.resp == nil || f.resp.Body == nil {
		return nil
	}
	return f.resp.Body.Close()
}

func retryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return DefaultRetryAfter
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		d := time.Duration(secs) * time.Second
		if d > MaxRetryAfter {
			return MaxRetryAfter
		}
		if d < 0 {
			return DefaultRetryAfter
		}
		return d
	}
	if when, err := http.ParseTime(raw); err == nil {
		d := time.Until(when)
		if d <= 0 {
			return DefaultRetryAfter
		}
		if d > MaxRetryAfter {
			return MaxRetryAfter
		}
		return d
	}
	return DefaultRetryAfter
}

func describe(resp *http.Response) string {
	return fmt.Sprintf("%s (%d) for %s", resp.Status, resp.StatusCode, resp.Request.URL)
}

func drainAndClose(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
