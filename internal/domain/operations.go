package domain

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	FormatAuto = "auto"
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
	FormatAVIF = "avif"
	FormatPNG  = "png"
	FormatSVG  = "svg"
	FormatGIF  = "gif"

	DefaultFormat  = FormatJPEG
	DefaultQuality = 75

	MaxDimension = 4000
	MaxQuality   = 100
)

var supportedFormats = map[string]struct{}{
	FormatAuto: {},
	FormatJPEG: {},
	FormatWebP: {},
	FormatAVIF: {},
	FormatPNG:  {},
	FormatSVG:  {},
	FormatGIF:  {},
}

func IsSupportedFormat(format string) bool {
	_, ok := supportedFormats[format]
	return ok
}

type Operations struct {
	Format  string `json:"format,omitempty"`
	Quality int    `json:"quality,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

func (o Operations) Segment() string {
	pairs := make([]string, 0, 4)
	if o.Format != "" {
		pairs = append(pairs, encodePair("format", o.Format))
	}
	if o.Quality > 0 {
		pairs = append(pairs, encodePair("quality", strconv.Itoa(o.Quality)))
	}
	if o.Width > 0 {
		pairs = append(pairs, encodePair("width", strconv.Itoa(o.Width)))
	}
	if o.Height > 0 {
		pairs = append(pairs, encodePair("height", strconv.Itoa(o.Height)))
	}
	return strings.Join(pairs, ",")
}

func (o Operations) VariantKey(sourceKey string) string {
	return strings.TrimPrefix(sourceKey, "/") + "/" + o.Segment()
}

func (o Operations) ContentType() string {
	return ContentTypeForFormat(o.Format)
}

func ParseOperationsSegment(segment string) Operations {
	var ops Operations
	for _, pair := range strings.Split(segment, ",") {
		key, rawValue, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		key = strings.ToLower(decodeToken(key))
		value := decodeToken(rawValue)
		switch key {
		case "format":
			format := strings.ToLower(value)
			if format != FormatAuto && IsSupportedFormat(format) {
				ops.Format = format
			}
		case "quality":
			ops.Quality = parseBoundedInt(value, MaxQuality)
		case "width":
			ops.Width = parseBoundedInt(value, MaxDimension)
		case "height":
			ops.Height = parseBoundedInt(value, MaxDimension)
		}
	}
	return ops
}

func ContentTypeForFormat(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	case FormatAVIF:
		return "image/avif"
	case FormatPNG:
		return "image/png"
	case FormatSVG:
		return "image/svg+xml"
	case FormatGIF:
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

func encodePair(key, value string) string {
	return url.QueryEscape(key) + "=" + url.QueryEscape(value)
}

func decodeToken(token string) string {
	decoded, err := url.QueryUnescape(token)
	if err != nil {
		return token
	}
	return decoded
}

func parseBoundedInt(value string, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}
