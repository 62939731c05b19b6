// Package stream turns the response body of a completion endpoint into an ordered sequence of content
// deltas. It knows nothing about transcripts: it reads bytes, decodes them, splits frames, recognises the
// framing convention of each frame and extracts the text increment it carries.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tejaswanthparasa/chatbot/internal/models"
)

// Transport opens one streaming request against a completion endpoint.
type Transport interface {
	Open(ctx context.Context, req models.ChatRequest) (ChunkReader, error)
}

// ChunkReader is a pull-based producer of raw body chunks. Read suspends until the next chunk arrives.
// It returns io.EOF once the remote side finished, an error wrapping ErrCanceled once the stream was
// cancelled, and a *TransportError for any other failure.
type ChunkReader interface {
	Read() ([]byte, error)
	Close() error
}

// TransportError describes a failure to obtain or read the response stream.
type TransportError struct {
	// Op is the step that failed: "request", "status", "body" or "read".
	Op         string
	StatusCode int
	// Body holds the beginning of an unsuccessful response body, if any.
	Body string
	Err  error
}

// HTTPTransport posts the chat request as JSON and streams the response body.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
}

type bodyReader struct {
	ctx    context.Context
	cancel context.CancelFunc
	body   io.ReadCloser
	buf    []byte

	// err is returned by the next Read, for readers that hand back data together with an error.
	err error
}

// ErrCanceled is wrapped by the error a ChunkReader returns after its stream was cancelled.
var ErrCanceled = errors.New("stream canceled")

var errNoBody = errors.New("response has no body")

const (
	chunkSize    = 4096
	maxErrorBody = 1024
)

// NewHTTPTransport creates a transport for the completion endpoint at the given URL. A nil client means
// a plain &http.Client{} without timeout, since a deadline on a stream is the caller's decision.
func NewHTTPTransport(endpoint string, client *http.Client) HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return HTTPTransport{
		endpoint: endpoint,
		client:   client,
	}
}

// Open sends req and returns a reader over the response body. Cancelling ctx, or calling Close on the
// returned reader, closes the connection; a pending Read then resolves with ErrCanceled.
func (t HTTPTransport) Open(ctx context.Context, req models.ChatRequest) (ChunkReader, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	parent := ctx
	ctx, cancel := context.WithCancel(parent)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream, text/plain")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		cancel()
		if parent.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrCanceled, parent.Err())
		}
		return nil, &TransportError{Op: "request", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		cancel()
		return nil, &TransportError{
			Op:         "status",
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		cancel()
		return nil, &TransportError{Op: "body", StatusCode: resp.StatusCode, Err: errNoBody}
	}

	return &bodyReader{
		ctx:    ctx,
		cancel: cancel,
		body:   resp.Body,
		buf:    make([]byte, chunkSize),
	}, nil
}

func (r *bodyReader) Read() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrCanceled, r.ctx.Err())
	}

	for {
		n, err := r.body.Read(r.buf)
		if err != nil {
			r.err = r.classify(err)
		}
		if n > 0 {
			return bytes.Clone(r.buf[:n]), nil
		}
		if r.err != nil {
			return nil, r.err
		}
	}
}

func (r *bodyReader) classify(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	if r.ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, r.ctx.Err())
	}
	return &TransportError{Op: "read", Err: err}
}

func (r *bodyReader) Close() error {
	r.cancel()
	return r.body.Close()
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err == nil:
		return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport %s failed", e.Op)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
