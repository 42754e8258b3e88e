package lavakit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// RequestOptions customizes a Node.Request call.
type RequestOptions struct {
	Headers map[string]string
	Query   url.Values
	Body    interface{}
	Timeout time.Duration
}

// Request performs a REST call against this Node's Lavalink server
// (spec.md §4.1) and returns the raw response body. A 204 response yields a
// nil body; 4xx/5xx yields *Error{Kind: ErrNodeRest, Status}. Request does
// not parse the body; RequestJSON reports malformed JSON as
// *Error{Kind: ErrNodeRestParse}.
func (n *Node) Request(ctx context.Context, method, route string, opts RequestOptions) ([]byte, error) {
	reqID := uuid.New().String()
	logger := n.logger.WithField("request_id", reqID)

	u := n.config.httpURL(route)
	if len(opts.Query) > 0 {
		u += "?" + opts.Query.Encode()
	}

	var bodyReader io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, wrapErr(ErrInvalidArgument, "marshal request body", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = n.config.DefaultRequestTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "build request", err)
	}
	req.Header.Set("Authorization", n.config.Password)
	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range n.config.DefaultRequestHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	logger.Debug("REST " + method + " " + route)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, wrapErr(ErrNodeRest, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: ErrNodeRestParse, Message: "read body", Cause: err, Status: resp.StatusCode}
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, &Error{Kind: ErrNodeRest, Message: "server returned error", Status: resp.StatusCode}
	}
	return data, nil
}

// RequestJSON performs Request and unmarshals the result into out (no-op if
// the response body is empty).
func (n *Node) RequestJSON(ctx context.Context, method, route string, opts RequestOptions, out interface{}) error {
	data, err := n.Request(ctx, method, route, opts)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: ErrNodeRestParse, Message: "decode response", Cause: err}
	}
	return nil
}
