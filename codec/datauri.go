package codec

import (
	"bytes"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

const dataPrefix = "data:"

// DataURI data:image/<fmt>;base64,<data>
type DataURI struct {
	MimeType string
	Data     []byte
}

// IsDataURI 只看前缀
func IsDataURI(b []byte) bool {
	return len(b) >= len(dataPrefix) && strings.EqualFold(string(b[:len(dataPrefix)]), dataPrefix)
}

// ParseDataURI 解析 data URI；不是 data URI 时 ok 为 false
func ParseDataURI(b []byte) (uri DataURI, ok bool, err error) {
	b = bytes.TrimSpace(b)
	if !IsDataURI(b) {
		return DataURI{}, false, nil
	}

	comma := bytes.IndexByte(b, ',')
	if comma < 0 {
		return DataURI{}, true, &DecodeError{Err: errors.New("data uri without payload")}
	}
	header := string(b[len(dataPrefix):comma])
	payload := b[comma+1:]

	params := strings.Split(header, ";")
	uri.MimeType = strings.ToLower(strings.TrimSpace(params[0]))
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}
	if !isBase64 {
		return uri, true, &DecodeError{Format: uri.MimeType, Err: errors.New("data uri is not base64 encoded")}
	}

	uri.Data, err = decodeBase64(payload)
	if err != nil {
		return uri, true, &DecodeError{Format: uri.MimeType, Err: errors.Wrap(err, "base64")}
	}
	return uri, true, nil
}

func decodeBase64(payload []byte) ([]byte, error) {
	clean := bytes.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)

	enc := base64.StdEncoding
	if len(clean)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	out := make([]byte, enc.DecodedLen(len(clean)))
	n, err := enc.Decode(out, clean)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// FormatDataURI 编码为 data:<mime>;base64,<data>
func FormatDataURI(mime string, data []byte) []byte {
	head := dataPrefix + mime + ";base64,"
	out := make([]byte, len(head)+base64.StdEncoding.EncodedLen(len(data)))
	copy(out, head)
	base64.StdEncoding.Encode(out[len(head):], data)
	return out
}
