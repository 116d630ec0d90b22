package normalize

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/dunamismax/pixelgate/internal/domain"
)

type Value struct {
	Value string
}

type Request struct {
	URI     string
	Query   map[string]Value
	Headers map[string]Value
}

var acceptPreferences = []struct {
	token  string
	format string
}{
	{token: "image/webp", format: domain.FormatWebP},
}

func ParsePositiveInt(raw string, max int) (int, bool) {
	s := strings.TrimLeftFunc(raw, unicode.IsSpace)
	negative := false
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		negative = s[0] == '-'
		s = s[1:]
	}

	digits := 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(s[:digits])
	if err != nil {
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) || !errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, false
		}
	}
	if negative || n <= 0 {
		return 0, false
	}
	if max > 0 && n > max {
		n = max
	}
	return n, true
}

func PreferredFormat(headers map[string]Value) string {
	accept := headers["accept"].Value
	if accept == "" {
		return domain.DefaultFormat
	}
	for _, preference := range acceptPreferences {
		if strings.Contains(accept, preference.token) {
			return preference.format
		}
	}
	return domain.DefaultFormat
}

func Resolve(req *Request) domain.Operations {
	var ops domain.Operations
	queryFormat := ""

	for name, entry := range req.Query {
		switch strings.ToLower(name) {
		case "format":
			format := strings.ToLower(entry.Value)
			if !domain.IsSupportedFormat(format) {
				continue
			}
			if format == domain.FormatAuto {
				queryFormat = ""
				continue
			}
			queryFormat = format
		case "width":
			if width, ok := ParsePositiveInt(entry.Value, domain.MaxDimension); ok {
				ops.Width = width
			}
		case "height":
			if height, ok := ParsePositiveInt(entry.Value, domain.MaxDimension); ok {
				ops.Height = height
			}
		case "quality":
			if quality, ok := ParsePositiveInt(entry.Value, domain.MaxQuality); ok {
				ops.Quality = quality
			}
		}
	}

	if queryFormat != "" {
		ops.Format = queryFormat
	} else {
		ops.Format = PreferredFormat(req.Headers)
	}
	return ops
}

func Rewrite(req *Request) domain.Operations {
	ops := Resolve(req)
	// escaped once more so the operations travel as a single opaque path segment
	req.URI = req.URI + "/" + url.QueryEscape(ops.Segment())
	req.Query = map[string]Value{}
	return ops
}
