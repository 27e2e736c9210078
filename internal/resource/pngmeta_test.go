// SPDX-License-Identifier: MIT

package resource

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(ctype string, data []byte) []byte {
	var b bytes.Buffer
	_ = binary.Write(&b, binary.BigEndian, uint32(len(data)))
	b.WriteString(ctype)
	b.Write(data)
	b.Write([]byte{0, 0, 0, 0}) // CRC is not verified by the parser
	return b.Bytes()
}

func pngWith(chunks ...[]byte) []byte {
	var b bytes.Buffer
	b.Write(pngSignature)
	for _, c := range chunks {
		b.Write(c)
	}
	b.Write(chunk("IEND", nil))
	return b.Bytes()
}

func deflate(t *testing.T, s string) []byte {
	t.Helper()
	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return b.Bytes()
}

func TestEmbeddedMetadata_TEXt(t *testing.T) {
	body := pngWith(chunk("tEXt", []byte("prompt\x00a castle at dusk")))

	meta := EmbeddedMetadata(body)
	assert.Equal(t, map[string]string{"prompt": "a castle at dusk"}, meta)
}

func TestEmbeddedMetadata_ZTXt(t *testing.T) {
	data := append([]byte("comment\x00\x00"), deflate(t, "compressed value")...)
	body := pngWith(chunk("zTXt", data))

	meta := EmbeddedMetadata(body)
	assert.Equal(t, "compressed value", meta["comment"])
}

func TestEmbeddedMetadata_ITXt(t *testing.T) {
	// keyword \0 flag \0 method \0 lang \0 translated \0 text
	data := []byte("title\x00\x00\x00en\x00\x00sunrise")
	body := pngWith(chunk("iTXt", data))

	meta := EmbeddedMetadata(body)
	assert.Equal(t, "sunrise", meta["title"])
}

func TestEmbeddedMetadata_MultipleChunks(t *testing.T) {
	body := pngWith(
		chunk("tEXt", []byte("a\x001")),
		chunk("tEXt", []byte("b\x002")),
	)

	meta := EmbeddedMetadata(body)
	assert.Len(t, meta, 2)
	assert.Equal(t, "1", meta["a"])
	assert.Equal(t, "2", meta["b"])
}

func TestEmbeddedMetadata_NotPNG(t *testing.T) {
	assert.Empty(t, EmbeddedMetadata([]byte("\xff\xd8\xff jpeg-ish")))
	assert.Empty(t, EmbeddedMetadata(nil))
}

func TestEmbeddedMetadata_TruncatedChunkIgnored(t *testing.T) {
	full := pngWith(chunk("tEXt", []byte("k\x00v")))
	truncated := full[:len(full)-6]

	// Must not panic; partial data yields whatever parsed cleanly.
	_ = EmbeddedMetadata(truncated)
}

func TestEmbeddedMetadata_MalformedChunkSkipped(t *testing.T) {
	body := pngWith(
		chunk("tEXt", []byte("no-separator")),
		chunk("tEXt", []byte("good\x00yes")),
	)

	meta := EmbeddedMetadata(body)
	assert.Equal(t, map[string]string{"good": "yes"}, meta)
}
