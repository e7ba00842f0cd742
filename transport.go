package httpflow

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Transport is the pipeline's external collaborator responsible for
// actually sending a request. Connection management, TLS, and retries are
// the transport's concern, not the pipeline's.
type Transport interface {
	Send(ctx context.Context, req *Request) (*StreamedResponse, error)
}

// httpTransport adapts a *http.Client to Transport.
type httpTransport struct {
	client *http.Client
}

// NewHTTPTransport returns a Transport backed by client. If client is nil,
// http.DefaultClient is used.
func NewHTTPTransport(client *http.Client) Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpTransport{client: client}
}

func (t *httpTransport) Send(ctx context.Context, req *Request) (*StreamedResponse, error) {
	var body io.Reader
	var contentLength int64 = -1
	if req.Body != nil {
		rc, err := req.Body.Open()
		if err != nil {
			return nil, fmt.Errorf("httpflow: opening request body: %w", err)
		}
		body = rc
		contentLength = req.Body.ContentLength()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("httpflow: building request: %w", err)
	}
	httpReq.Header = cloneHeader(req.Header)
	if contentLength >= 0 {
		httpReq.ContentLength = contentLength
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	return &StreamedResponse{
		StatusCode:    resp.StatusCode,
		Reason:        resp.Status,
		ContentLength: resp.ContentLength,
		Header:        resp.Header,
		Body:          resp.Body,
		Request:       req,
	}, nil
}

// Close closes the underlying client's idle connections if it supports
// doing so. Satisfies io.Closer so Pipeline.Close can call it uniformly.
func (t *httpTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

var _ Transport = (*httpTransport)(nil)
