// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug provides URL-friendly slug generation from arbitrary strings.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when a title contains nothing sluggable.
const Fallback = "post"

// Generate creates a URL-friendly slug from the given string.
// Accents are folded to their base letter and other Latin, Cyrillic and
// Greek letters are transliterated. Every run of characters outside
// [a-z0-9] becomes a single hyphen, and leading/trailing hyphens are removed.
// Example: "Hello, World! 2026" → "hello-world-2026"
func Generate(s string) string {
	folded := fold(s)

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		out, ok := translit[r]
		if !ok && ((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			out, ok = string(r), true
		}
		if !ok {
			pendingHyphen = true
			continue
		}
		if out == "" {
			continue
		}
		if pendingHyphen && b.Len() > 0 {
			b.WriteByte('-')
		}
		pendingHyphen = false
		b.WriteString(out)
	}
	return b.String()
}

// translit spells lowercase letters that have no canonical decomposition
// in ASCII.
var translit = map[rune]string{
	// Latin
	'ß': "ss", 'æ': "ae", 'œ': "oe", 'ø': "o", 'ł': "l", 'đ': "d", 'ð': "d",
	'þ': "th", 'ħ': "h", 'ı': "i", 'ĳ': "ij", 'ŀ': "l", 'ŋ': "ng", 'ŧ': "t",
	'ĸ': "k", 'ſ': "s",

	// Cyrillic
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ж': "zh",
	'з': "z", 'и': "i", 'к': "k", 'л': "l", 'м': "m", 'н': "n", 'о': "o",
	'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u", 'ф': "f", 'х': "h",
	'ц': "c", 'ч': "ch", 'ш': "sh", 'щ': "sh", 'ъ': "", 'ы': "y", 'ь': "",
	'э': "e", 'ю': "yu", 'я': "ya", 'є': "ye", 'і': "i", 'ґ': "g", 'ђ': "dj",
	'ј': "j", 'љ': "lj", 'њ': "nj", 'ћ': "c", 'џ': "dz",

	// Greek
	'α': "a", 'β': "v", 'γ': "g", 'δ': "d", 'ε': "e", 'ζ': "z", 'η': "i",
	'θ': "th", 'ι': "i", 'κ': "k", 'λ': "l", 'μ': "m", 'ν': "n", 'ξ': "ks",
	'ο': "o", 'π': "p", 'ρ': "r", 'σ': "s", 'ς': "s", 'τ': "t", 'υ': "y",
	'φ': "f", 'χ': "x", 'ψ': "ps", 'ω': "w",
}

// GenerateOr is Generate with a fallback for inputs that produce an empty slug.
func GenerateOr(s, fallback string) string {
	if out := Generate(s); out != "" {
		return out
	}
	return fallback
}

// WithSuffix appends a disambiguating suffix to a slug.
func WithSuffix(base, suffix string) string {
	if suffix == "" {
		return base
	}
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

// fold strips combining marks after canonical decomposition (é → e).
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
