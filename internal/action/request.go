package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/danmuck/swapharness/internal/siren"
)

// Request is a transport-level rendering of an action. Body is nil for GET.
type Request struct {
	Method      string
	URL         string
	ContentType string
	Body        []byte
}

// Build turns an action and its resolved values into a Request.
func Build(a siren.Action, values Values) (Request, error) {
	method := a.HTTPMethod()
	switch method {
	case http.MethodGet:
		target, err := withQuery(a.Href, values)
		if err != nil {
			return Request{}, fmt.Errorf("%w: action %q href %q: %v", ErrContractViolation, a.Name, a.Href, err)
		}
		return Request{Method: method, URL: target}, nil
	case http.MethodPost:
		if !siren.IsJSONMediaType(a.Type) {
			return Request{}, fmt.Errorf("%w: %w: action %q declares %q",
				ErrContractViolation, ErrUnsupportedContentType, a.Name, a.Type)
		}
		if values == nil {
			values = Values{}
		}
		body, err := json.Marshal(values)
		if err != nil {
			return Request{}, fmt.Errorf("action: encode %q body: %w", a.Name, err)
		}
		return Request{Method: method, URL: a.Href, ContentType: siren.MediaTypeJSON, Body: body}, nil
	default:
		return Request{}, fmt.Errorf("%w: %w: action %q uses %s", ErrContractViolation, ErrUnsupportedMethod, a.Name, method)
	}
}

// HTTPRequest resolves r against the daemon base URL, keeping any base
// path, and returns a ready-to-send request.
func (r Request) HTTPRequest(ctx context.Context, base *url.URL) (*http.Request, error) {
	target, err := siren.ResolveHref(base, r.URL)
	if err != nil {
		return nil, fmt.Errorf("action: parse url %q: %w", r.URL, err)
	}
	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		return nil, err
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	req.Header.Set("Accept", siren.MediaTypeJSON)
	return req, nil
}

func withQuery(href string, values Values) (string, error) {
	if len(values) == 0 {
		return href, nil
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range values {
		q.Set(k, queryValue(v))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func queryValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}
