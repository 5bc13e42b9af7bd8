package ai

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// decodeImage accepts plain base64 or a data URL and returns the bytes and
// the best MIME type it can determine.
func decodeImage(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hint string
	if strings.HasPrefix(s, "data:") {
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			hint, _, _ = strings.Cut(meta, ";")
			s = s[idx+1:]
		}
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var urlErr error
		if data, urlErr = base64.URLEncoding.DecodeString(s); urlErr != nil {
			return nil, "", err
		}
	}

	mime := strings.TrimSpace(hint)
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

// toDataURL returns s as a data URL, prefixing plain base64 with a MIME type
// sniffed from its bytes.
func toDataURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	mime := "image/jpeg"
	if data, sniffed, err := decodeImage(s); err == nil && len(data) > 0 {
		mime = sniffed
	}
	return "data:" + mime + ";base64," + s
}

// EncodeImage renders raw bytes as a data URL for the providers.
func EncodeImage(data []byte, contentType string) string {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// stripCodeFences removes a surrounding markdown code block, if any.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
