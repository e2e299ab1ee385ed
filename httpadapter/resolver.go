package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/unruly-software/api"
	"github.com/unruly-software/api/client"
)

// NewResolver returns a client.Resolver calling a server mounted with
// Mount at baseURL. Non-2xx answers become *api.RemoteError carrying the
// body's "error" field. A nil httpClient uses http.DefaultClient.
func NewResolver[M Route](baseURL string, httpClient *http.Client) client.Resolver[M] {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return func(ctx context.Context, req client.Request[M]) (any, error) {
		method, path := req.Definition.Metadata.HTTPRoute()

		var payload []byte
		if req.Input != nil {
			var err error
			if payload, err = json.Marshal(req.Input); err != nil {
				return nil, fmt.Errorf("httpadapter: encode %s: %w", req.Operation, err)
			}
		}

		target := baseURL + path
		var body io.Reader
		if method == http.MethodGet || method == http.MethodDelete {
			if payload != nil {
				target += "?" + url.Values{InputParam: {string(payload)}}.Encode()
			}
		} else if payload != nil {
			body = bytes.NewReader(payload)
		}

		hreq, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, err
		}
		if body != nil {
			hreq.Header.Set("Content-Type", "application/json")
		}
		hreq.Header.Set("Accept", "application/json")

		resp, err := httpClient.Do(hreq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, remoteError(resp.StatusCode, raw)
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil, nil
		}
		return raw, nil
	}
}

func remoteError(status int, raw []byte) *api.RemoteError {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		return &api.RemoteError{Status: status, Message: http.StatusText(status)}
	}
	return &api.RemoteError{Status: status, Message: body.Error}
}
