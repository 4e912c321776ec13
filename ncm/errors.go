package ncm

import "errors"

var (
	// ErrNotNCMFormat is returned when the input does not start with the
	// NCM container signature.
	ErrNotNCMFormat = errors.New("this file is not in ncm format")

	// ErrTruncated is returned when a declared length runs past the end of
	// the input, including reserved regions and the audio header.
	ErrTruncated = errors.New("unexpected end of input")

	// ErrInvalidPadding is returned when PKCS7 padding bytes are out of
	// range or inconsistent.
	ErrInvalidPadding = errors.New("invalid pkcs7 padding")
)
