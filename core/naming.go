package core

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"pkt.systems/swayless/schema"
)

var superscriptDigits = [10]rune{'⁰', '¹', '²', '³', '⁴', '⁵', '⁶', '⁷', '⁸', '⁹'}

// WorkspaceName maps a tag on the output at ordinal onto the concrete
// workspace name. The primary output keeps plain tag names.
func WorkspaceName(tag schema.Tag, ordinal int) schema.WorkspaceName {
	if ordinal <= 0 {
		return schema.WorkspaceName(tag)
	}
	return schema.WorkspaceName(string(tag) + Superscript(ordinal+1))
}

// Superscript renders n using superscript digits.
func Superscript(n int) string {
	digits := strconv.Itoa(n)
	var b strings.Builder
	for _, r := range digits {
		if r == '-' {
			continue
		}
		b.WriteRune(superscriptDigits[r-'0'])
	}
	return b.String()
}

// ParseSuperscript decodes a run of superscript digits.
func ParseSuperscript(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	var b strings.Builder
	for _, r := range s {
		d := superscriptValue(r)
		if d < 0 {
			return 0, false
		}
		b.WriteByte(byte('0' + d))
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseWorkspaceName splits a concrete name into its tag and output ordinal.
// Names without a superscript suffix belong to ordinal 0.
func ParseWorkspaceName(name schema.WorkspaceName) (schema.Tag, int, bool) {
	s := string(name)
	cut := len(s)
	for cut > 0 {
		r, size := utf8.DecodeLastRuneInString(s[:cut])
		if superscriptValue(r) < 0 {
			break
		}
		cut -= size
	}
	tag := s[:cut]
	if tag == "" {
		return "", 0, false
	}
	if cut == len(s) {
		return schema.Tag(tag), 0, true
	}
	n, ok := ParseSuperscript(s[cut:])
	if !ok || n < 2 {
		return "", 0, false
	}
	return schema.Tag(tag), n - 1, true
}

// TagForOrdinal recovers the tag of a concrete name on the output at ordinal.
// It reports false when the name does not follow that output's naming.
func TagForOrdinal(name schema.WorkspaceName, ordinal int) (schema.Tag, bool) {
	if name == "" {
		return "", false
	}
	if ordinal <= 0 {
		return schema.Tag(name), true
	}
	suffix := Superscript(ordinal + 1)
	s := string(name)
	if !strings.HasSuffix(s, suffix) {
		return "", false
	}
	tag := strings.TrimSuffix(s, suffix)
	if tag == "" {
		return "", false
	}
	if r, _ := utf8.DecodeLastRuneInString(tag); superscriptValue(r) >= 0 {
		return "", false
	}
	return schema.Tag(tag), true
}

func superscriptValue(r rune) int {
	for i, d := range superscriptDigits {
		if r == d {
			return i
		}
	}
	return -1
}
