// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package png implements a minimal PNG chunk reader/writer focused on one
// job: injecting, replacing, and removing tEXt/iTXt/zTXt text chunks while
// guaranteeing every other chunk — most importantly IHDR, IDAT, and IEND —
// survives byte-for-byte.
//
// # Description
//
// This is deliberately not a general-purpose PNG decoder: pixel data is
// never interpreted, only chunk-framed and re-framed. That keeps the IDAT
// preservation invariant trivial to satisfy: chunks this package doesn't
// understand are carried through as opaque byte blobs.
package png

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/arcaferry/arcaferry/services/arcaferry/apierrors"
)

var signature = [8]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Chunk is one PNG chunk: a 4-byte type tag and its raw data payload.
type Chunk struct {
	Type [4]byte
	Data []byte
}

// TypeString returns the chunk type as a string, e.g. "IHDR".
func (c Chunk) TypeString() string {
	return string(c.Type[:])
}

// NewChunk builds a Chunk from a type string (must be 4 ASCII bytes) and
// data.
func NewChunk(typeStr string, data []byte) Chunk {
	var t [4]byte
	copy(t[:], typeStr)
	return Chunk{Type: t, Data: data}
}

func calculateCRC(chunkType [4]byte, data []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write(chunkType[:])
	h.Write(data)
	return h.Sum32()
}

// ReadChunks parses a PNG byte stream into its ordered chunk sequence,
// stopping at (and including) the first IEND chunk. Trailing bytes after
// IEND are ignored, matching the original's behavior.
func ReadChunks(data []byte) ([]Chunk, error) {
	if len(data) < 8 || !bytes.Equal(data[:8], signature[:]) {
		return nil, apierrors.New(apierrors.KindInvalidPNGSignature, "invalid PNG signature")
	}

	var chunks []Chunk
	pos := 8

	for pos < len(data) {
		if pos+8 > len(data) {
			break
		}

		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4

		var chunkType [4]byte
		copy(chunkType[:], data[pos:pos+4])
		pos += 4

		if pos+length+4 > len(data) {
			return nil, apierrors.New(apierrors.KindPNGChunkError, "truncated chunk")
		}

		chunkData := make([]byte, length)
		copy(chunkData, data[pos:pos+length])
		pos += length

		// Skip CRC; we recompute on write rather than validate on read,
		// matching the original's trust-the-reader-validates-on-write design.
		pos += 4

		chunks = append(chunks, Chunk{Type: chunkType, Data: chunkData})

		if string(chunkType[:]) == "IEND" {
			break
		}
	}

	return chunks, nil
}

// BuildPNG re-serializes a chunk sequence, computing a fresh CRC-32 over
// type‖data for every chunk.
func BuildPNG(chunks []Chunk) []byte {
	var buf bytes.Buffer
	buf.Write(signature[:])

	var lenBuf, crcBuf [4]byte
	for _, c := range chunks {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(c.Data)))
		buf.Write(lenBuf[:])
		buf.Write(c.Type[:])
		buf.Write(c.Data)

		crc := calculateCRC(c.Type, c.Data)
		binary.BigEndian.PutUint32(crcBuf[:], crc)
		buf.Write(crcBuf[:])
	}

	return buf.Bytes()
}

// decodeTextChunk decodes a tEXt chunk: keyword\x00payload. The payload is
// tried as Base64 first, falling back to raw UTF-8 bytes if that fails.
func decodeTextChunk(data []byte) (keyword, text string, ok bool) {
	idx := bytes.IndexByte(data, 0)
	if idx < 0 {
		return "", "", false
	}
	keyword = string(data[:idx])
	payload := data[idx+1:]

	if decoded, err := base64.StdEncoding.DecodeString(string(payload)); err == nil {
		return keyword, string(decoded), true
	}
	return keyword, string(payload), true
}

// decodeITXtChunk decodes an iTXt chunk:
// keyword\0 compression_flag compression_method language_tag\0 translated_keyword\0 text
func decodeITXtChunk(data []byte) (keyword, text string, ok bool) {
	idx := bytes.IndexByte(data, 0)
	if idx < 0 {
		return "", "", false
	}
	keyword = string(data[:idx])
	rest := data[idx+1:]

	if len(rest) < 2 {
		return "", "", false
	}
	compressionFlag := rest[0]
	rest = rest[2:]

	langNull := bytes.IndexByte(rest, 0)
	if langNull < 0 {
		return "", "", false
	}
	rest = rest[langNull+1:]

	transNull := bytes.IndexByte(rest, 0)
	if transNull < 0 {
		return "", "", false
	}
	textData := rest[transNull+1:]

	if compressionFlag == 1 {
		decompressed, err := zlibDecompress(textData)
		if err != nil {
			return "", "", false
		}
		textData = decompressed
	}

	return keyword, string(textData), true
}

// decodeZTXtChunk decodes a zTXt chunk: keyword\0 compression_method compressed_text
func decodeZTXtChunk(data []byte) (keyword, text string, ok bool) {
	idx := bytes.IndexByte(data, 0)
	if idx < 0 {
		return "", "", false
	}
	keyword = string(data[:idx])

	if idx+1 >= len(data) {
		return "", "", false
	}
	compressed := data[idx+2:]

	decompressed, err := zlibDecompress(compressed)
	if err != nil {
		return "", "", false
	}
	return keyword, string(decompressed), true
}

func zlibDecompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// ReadTextChunks collects every tEXt/iTXt/zTXt chunk into a keyword->text
// map. A later chunk with the same keyword overwrites an earlier one.
func ReadTextChunks(data []byte) (map[string]string, error) {
	chunks, err := ReadChunks(data)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, c := range chunks {
		var keyword, text string
		var ok bool

		switch c.TypeString() {
		case "tEXt":
			keyword, text, ok = decodeTextChunk(c.Data)
		case "iTXt":
			keyword, text, ok = decodeITXtChunk(c.Data)
		case "zTXt":
			keyword, text, ok = decodeZTXtChunk(c.Data)
		}

		if ok {
			result[keyword] = text
		}
	}

	return result, nil
}

// GetCardData returns the first card payload found under the "ccv3"
// keyword, else "chara", else (false) if neither is present.
func GetCardData(data []byte) (format, json string, found bool, err error) {
	texts, err := ReadTextChunks(data)
	if err != nil {
		return "", "", false, err
	}

	if j, ok := texts["ccv3"]; ok {
		return "ccv3", j, true, nil
	}
	if j, ok := texts["chara"]; ok {
		return "chara", j, true, nil
	}
	return "", "", false, nil
}

func buildTextChunkData(keyword, text string) []byte {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	data := make([]byte, 0, len(keyword)+1+len(encoded))
	data = append(data, keyword...)
	data = append(data, 0)
	data = append(data, encoded...)
	return data
}

// InjectTextChunk builds a tEXt chunk (keyword‖0x00‖Base64(text)) and
// inserts it into the PNG. If replace is true and a tEXt chunk with the
// same keyword already exists, it is substituted in place; otherwise the
// new chunk is inserted immediately before IEND (or appended if there is
// no IEND). No other chunk is touched.
func InjectTextChunk(data []byte, keyword, text string, replace bool) ([]byte, error) {
	chunks, err := ReadChunks(data)
	if err != nil {
		return nil, err
	}

	newChunk := NewChunk("tEXt", buildTextChunkData(keyword, text))

	newChunks := make([]Chunk, 0, len(chunks)+1)
	replaced := false

	for _, c := range chunks {
		if replace && c.TypeString() == "tEXt" {
			if kw, _, ok := decodeTextChunk(c.Data); ok && kw == keyword {
				newChunks = append(newChunks, newChunk)
				replaced = true
				continue
			}
		}
		newChunks = append(newChunks, c)
	}

	if !replaced {
		iendIdx := -1
		for i, c := range newChunks {
			if c.TypeString() == "IEND" {
				iendIdx = i
				break
			}
		}
		if iendIdx >= 0 {
			newChunks = append(newChunks[:iendIdx], append([]Chunk{newChunk}, newChunks[iendIdx:]...)...)
		} else {
			newChunks = append(newChunks, newChunk)
		}
	}

	return BuildPNG(newChunks), nil
}

// RemoveTextChunk drops any tEXt/iTXt/zTXt chunk whose decoded keyword
// matches, leaving image data untouched.
func RemoveTextChunk(data []byte, keyword string) ([]byte, error) {
	chunks, err := ReadChunks(data)
	if err != nil {
		return nil, err
	}

	newChunks := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		shouldRemove := false
		switch c.TypeString() {
		case "tEXt":
			if kw, _, ok := decodeTextChunk(c.Data); ok {
				shouldRemove = kw == keyword
			}
		case "iTXt":
			if kw, _, ok := decodeITXtChunk(c.Data); ok {
				shouldRemove = kw == keyword
			}
		case "zTXt":
			if kw, _, ok := decodeZTXtChunk(c.Data); ok {
				shouldRemove = kw == keyword
			}
		}

		if !shouldRemove {
			newChunks = append(newChunks, c)
		}
	}

	return BuildPNG(newChunks), nil
}

// EmbedCard is a convenience wrapper that injects card_json as a replacing
// "ccv3" tEXt chunk.
func EmbedCard(pngData []byte, cardJSON string) ([]byte, error) {
	return InjectTextChunk(pngData, "ccv3", cardJSON, true)
}

// ExtractIDATChunks returns the ordered list of raw IDAT chunk payloads,
// used to verify image-data integrity across an inject/remove operation.
func ExtractIDATChunks(data []byte) ([][]byte, error) {
	chunks, err := ReadChunks(data)
	if err != nil {
		return nil, err
	}

	var idats [][]byte
	for _, c := range chunks {
		if c.TypeString() == "IDAT" {
			idats = append(idats, c.Data)
		}
	}
	return idats, nil
}
