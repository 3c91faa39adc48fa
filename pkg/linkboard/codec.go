package linkboard

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Template codec
//
// Dashboard templates are far larger than the transport's payload ceiling
// allows for plain text, so every template travels compressed (zlib, best
// compression) and base64-encoded so it can be embedded in a JSON-ish slot.
// Rendered dashboards reuse the same codec on the way back out.

// MaxEncodedLen is the hard ceiling on an encoded template blob. The
// transport slot cannot carry arbitrarily large values, so oversize
// templates are rejected at encode time rather than truncated in flight.
const MaxEncodedLen = 128 * 1024

// ErrTemplateTooLarge is returned by EncodeTemplate when the encoded blob
// would exceed MaxEncodedLen.
var ErrTemplateTooLarge = errors.New("encoded template exceeds transport size limit")

// EncodeTemplate compresses and base64-encodes a template body for
// transport. Round-trips exactly through DecodeTemplate for all valid UTF-8
// input.
func EncodeTemplate(body string) (string, error) {
	var buf bytes.Buffer

	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return "", fmt.Errorf("failed to create compressor: %w", err)
	}

	if _, err := zw.Write([]byte(body)); err != nil {
		return "", fmt.Errorf("failed to compress template: %w", err)
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to flush compressor: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	if len(encoded) > MaxEncodedLen {
		return "", fmt.Errorf("%w: %d bytes", ErrTemplateTooLarge, len(encoded))
	}

	return encoded, nil
}

// DecodeTemplate reverses EncodeTemplate. Malformed base64 or corrupt
// compressed data returns a wrapped error; callers treat decode failure as
// an unrecoverable codec error for that record.
func DecodeTemplate(blob string) (string, error) {
	compressed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("failed to base64-decode template: %w", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return "", fmt.Errorf("failed to decompress template: %w", err)
	}
	defer zr.Close()

	body, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("failed to decompress template: %w", err)
	}

	return string(body), nil
}
