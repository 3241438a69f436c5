// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

package tag

import (
	"fmt"
	"unicode/utf8"
)

// Length bounds, counted in Unicode scalar values (not bytes). A tag
// of 255 four-byte runes is valid even though it is 1020 bytes of
// UTF-8.
const (
	MinLength = 1
	MaxLength = 255
)

// Tag is a validated human-readable label. The zero value is not a
// valid tag; construct through [Parse] only. Comparison is exact text
// equality — no case folding, no trimming — so Tag works directly as a
// map or set key.
type Tag struct {
	text string
}

// LengthError reports a tag whose length falls outside [MinLength,
// MaxLength]. It carries the offending length and the original text
// for diagnostics, and maps to an invalid-argument status at the
// service boundary.
type LengthError struct {
	Length int
	Text   string
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("invalid tag %q: must be between %d and %d characters, is %d",
		e.Text, MinLength, MaxLength, e.Length)
}

// Parse validates s as a tag. The length check counts Unicode scalar
// values. This runs on both sides of the wire: a client validates
// before transmitting, and the service validates again because wire
// input is untrusted.
func Parse(s string) (Tag, error) {
	length := utf8.RuneCountInString(s)
	if length < MinLength || length > MaxLength {
		return Tag{}, &LengthError{Length: length, Text: s}
	}
	return Tag{text: s}, nil
}

// String returns the tag text.
func (t Tag) String() string {
	return t.text
}

// Strings converts a slice of tags to their text form, preserving
// order. Used at the wire and store boundaries, which traffic in
// already-validated plain strings.
func Strings(tags []Tag) []string {
	if tags == nil {
		return nil
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.text
	}
	return names
}

// ParseAll validates every string in names. Returns the first
// validation failure, if any; a single bad tag rejects the whole set.
func ParseAll(names []string) ([]Tag, error) {
	tags := make([]Tag, len(names))
	for i, name := range names {
		t, err := Parse(name)
		if err != nil {
			return nil, err
		}
		tags[i] = t
	}
	return tags, nil
}
