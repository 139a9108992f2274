package callback

import (
	"net/http"
	"net/url"
	"strings"
)

// Request is a gateway callback detached from the transport that delivered it.
type Request struct {
	Method  string
	Params  map[string]string
	Headers http.Header
	Body    []byte
}

func NewRequest(method string, params url.Values, headers http.Header, body []byte) *Request {
	flat := make(map[string]string, len(params))
	for key, values := range params {
		if len(values) > 0 {
			flat[key] = values[0]
		}
	}
	if headers == nil {
		headers = http.Header{}
	}
	return &Request{
		Method:  strings.ToUpper(method),
		Params:  flat,
		Headers: headers,
		Body:    body,
	}
}

func (r *Request) Param(key string) string {
	if r == nil || r.Params == nil {
		return ""
	}
	return strings.TrimSpace(r.Params[key])
}

func (r *Request) Header(key string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return strings.TrimSpace(r.Headers.Get(key))
}
