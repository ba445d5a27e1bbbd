package imaging

import (
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"strings"
)

// DataURI is a decoded data:<mime>;base64,<payload> string.
type DataURI struct {
	MIME string
	Data []byte
}

// ParseDataURI decodes a base64 data URI. Only the base64 form is accepted;
// URL-encoded (non-base64) data URIs are rejected.
func ParseDataURI(s string) (DataURI, error) {
	s = strings.TrimSpace(s)
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return DataURI{}, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return DataURI{}, fmt.Errorf("data URI has no payload separator")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return DataURI{}, fmt.Errorf("data URI is not base64 encoded")
	}
	if mime == "" {
		mime = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders drop padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return DataURI{}, fmt.Errorf("invalid base64 payload: %w", err)
		}
	}
	return DataURI{MIME: mime, Data: data}, nil
}

// EncodeDataURI builds data:<mime>;base64,<payload>. An empty mime is sniffed
// from the bytes.
func EncodeDataURI(mime string, data []byte) string {
	if mime == "" {
		mime = SniffMIME(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// SniffMIME detects the content type of raw bytes, dropping any parameters.
func SniffMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}

// EstimateSizeKB estimates the decoded size of a data URI's payload in
// kilobytes. Diagnostics only.
func EstimateSizeKB(image string) int {
	payload := image
	if _, after, ok := strings.Cut(image, ","); ok {
		payload = after
	}
	return int(math.Round(float64(len(payload)) * 3 / 4 / 1024))
}
