// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package readtime estimates how long a post takes to read.
package readtime

import "strings"

// WordsPerMinute is the assumed average reading speed.
const WordsPerMinute = 200

// WordCount returns the number of whitespace-separated tokens in content.
// Markup is counted as-is.
func WordCount(content string) int {
	return len(strings.Fields(content))
}

// Minutes returns ceil(words / WordsPerMinute), never less than 1.
func Minutes(content string) int {
	words := WordCount(content)
	m := (words + WordsPerMinute - 1) / WordsPerMinute
	return max(m, 1)
}
