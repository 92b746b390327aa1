// Copyright 2024 The Erigon Payload Index Authors
// This file is part of erigon-payload-index.
//
// erigon-payload-index is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// erigon-payload-index is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with erigon-payload-index. If not, see <http://www.gnu.org/licenses/>.

package fulltext

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var caser = cases.Fold()

// rawTokenize implements spec §4.4 steps 1-2: NFKC-normalize, casefold,
// then split on Unicode word boundaries (letters and digits form a
// token, everything else is a separator). Positions in the returned
// slice are 0-based within this stream, before stop-word removal — the
// caller is responsible for keeping that alignment (step 5).
func rawTokenize(text string) []string {
	normalized := norm.NFKC.String(text)
	folded := caser.String(normalized)

	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur = append(cur, r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// langTag is not a tokenization hook: spec names per-language casefolding only
// incidentally (step 2 is locale-independent Unicode casefolding for
// every language the index supports), so every Config uses the same
// cases.Fold() instance; langTag exists only for callers that want a
// language.Tag for logging/telemetry, not for tokenization itself.
func langTag(name string) language.Tag {
	tag, err := language.Parse(name)
	if err != nil {
		return language.Und
	}
	return tag
}
