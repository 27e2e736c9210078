// SPDX-License-Identifier: MIT

package resource

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// maxTextChunk caps decompressed text chunk size to guard against
// zlib bombs inside hostile images.
const maxTextChunk = 1 << 20

// EmbeddedMetadata extracts textual metadata embedded in an image body.
// PNG tEXt, zTXt and iTXt chunks are supported; any other format yields an
// empty map. Malformed chunks are skipped, never fatal.
func EmbeddedMetadata(body []byte) map[string]string {
	out := map[string]string{}
	if !bytes.HasPrefix(body, pngSignature) {
		return out
	}

	r := body[len(pngSignature):]
	for len(r) >= 12 {
		length := binary.BigEndian.Uint32(r[0:4])
		ctype := string(r[4:8])
		if uint64(len(r)) < 12+uint64(length) {
			break
		}
		data := r[8 : 8+length]

		switch ctype {
		case "IEND":
			return out
		case "tEXt":
			if k, v, ok := parseTEXt(data); ok {
				out[k] = v
			}
		case "zTXt":
			if k, v, ok := parseZTXt(data); ok {
				out[k] = v
			}
		case "iTXt":
			if k, v, ok := parseITXt(data); ok {
				out[k] = v
			}
		}

		r = r[12+length:] // length + type + data + CRC
	}
	return out
}

// tEXt: keyword \0 text
func parseTEXt(data []byte) (string, string, bool) {
	i := bytes.IndexByte(data, 0)
	if i <= 0 {
		return "", "", false
	}
	return string(data[:i]), string(data[i+1:]), true
}

// zTXt: keyword \0 compression-method(0) compressed-text
func parseZTXt(data []byte) (string, string, bool) {
	i := bytes.IndexByte(data, 0)
	if i <= 0 || len(data) < i+2 || data[i+1] != 0 {
		return "", "", false
	}
	text, ok := inflate(data[i+2:])
	if !ok {
		return "", "", false
	}
	return string(data[:i]), text, true
}

// iTXt: keyword \0 compression-flag compression-method language \0 translated-keyword \0 text
func parseITXt(data []byte) (string, string, bool) {
	i := bytes.IndexByte(data, 0)
	if i <= 0 || len(data) < i+3 {
		return "", "", false
	}
	keyword := string(data[:i])
	compressed := data[i+1] == 1
	rest := data[i+3:]

	// Skip language tag and translated keyword.
	for range 2 {
		j := bytes.IndexByte(rest, 0)
		if j < 0 {
			return "", "", false
		}
		rest = rest[j+1:]
	}

	if compressed {
		text, ok := inflate(rest)
		if !ok {
			return "", "", false
		}
		return keyword, text, true
	}
	return keyword, string(rest), true
}

func inflate(data []byte) (string, bool) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	defer func() { _ = zr.Close() }()

	text, err := io.ReadAll(io.LimitReader(zr, maxTextChunk))
	if err != nil {
		return "", false
	}
	return string(text), true
}
