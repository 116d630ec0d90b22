package normalize

import (
	"net/http"
	"strings"
)

func FromHTTP(r *http.Request) *Request {
	query := make(map[string]Value)
	for name, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		query[name] = Value{Value: values[0]}
	}

	headers := make(map[string]Value, len(r.Header))
	for name, values := range r.Header {
		if len(values) == 0 {
			continue
		}
		headers[strings.ToLower(name)] = Value{Value: values[0]}
	}

	return &Request{
		URI:     r.URL.EscapedPath(),
		Query:   query,
		Headers: headers,
	}
}
