// Package linkparse turns raw obsidian://open deep links into structured
// (vault, file) pairs, tolerating encoding inconsistencies, parameter
// reordering, and malformed escaping.
package linkparse

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/starford/raido/internal/apperr"
)

// Scheme is the only deep-link scheme Raido resolves.
const Scheme = "obsidian"

// ParsedLink is the structured form of a deep link. It is derived from the
// raw string on every parse and never persisted.
type ParsedLink struct {
	Vault string `json:"vault"`
	File  string `json:"file"`
}

var (
	vaultRe = regexp.MustCompile(`vault=([^&\s]+)`)
	fileRe  = regexp.MustCompile(`file=([^&\s]+)`)
	wsRe    = regexp.MustCompile(`\s+`)
)

// Parse extracts the vault name and file reference from a raw deep link.
// It is total over strings: it never panics and always returns either a
// ParsedLink with both fields non-empty or an error wrapping apperr.ErrParse.
// The same input always yields the same result.
//
// Strategies are tried in priority order: structured URL parse, tolerant
// parse with whitespace stripped from the query string, then bare regex
// extraction of the vault= and file= values.
func Parse(raw string) (ParsedLink, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "&amp;", "&")

	if !strings.HasPrefix(cleaned, Scheme+"://") {
		return ParsedLink{}, fmt.Errorf("linkparse: %q: %w", raw, apperr.ErrParse)
	}

	for _, strategy := range []func(string) (string, string, bool){
		parseStructured,
		parseTolerant,
		parseExtract,
	} {
		vault, file, ok := strategy(cleaned)
		if !ok {
			continue
		}
		link := ParsedLink{Vault: strings.TrimSpace(vault), File: NormalizeRef(file)}
		if link.Vault == "" || link.File == "" {
			continue
		}
		return link, nil
	}
	return ParsedLink{}, fmt.Errorf("linkparse: %q: %w", raw, apperr.ErrParse)
}

// NormalizeRef canonicalizes a file reference: trailing .md extensions are
// stripped, backslashes become forward slashes, literal %20 sequences that
// survived decoding become spaces, and whitespace runs collapse to a single
// space. NormalizeRef is idempotent.
func NormalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	for strings.HasSuffix(ref, ".md") {
		ref = strings.TrimSuffix(ref, ".md")
	}
	ref = strings.ReplaceAll(ref, `\`, "/")
	ref = strings.ReplaceAll(ref, "%20", " ")
	ref = wsRe.ReplaceAllString(ref, " ")
	return strings.TrimSpace(ref)
}

// parseStructured handles well-formed links: obsidian scheme, "open" action,
// vault and file query parameters in either order.
func parseStructured(s string) (string, string, bool) {
	u, err := url.Parse(s)
	if err != nil || u.Scheme != Scheme {
		return "", "", false
	}
	action := u.Host
	if action == "" {
		action = strings.Trim(u.Path, "/")
	}
	if action != "open" {
		return "", "", false
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", "", false
	}
	vault, file := q.Get("vault"), q.Get("file")
	return vault, file, vault != "" && file != ""
}

// parseTolerant strips stray whitespace inside the query string and retries
// the structured parse.
func parseTolerant(s string) (string, string, bool) {
	i := strings.IndexByte(s, '?')
	if i < 0 {
		return "", "", false
	}
	query := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s[i+1:])
	return parseStructured(s[:i+1] + query)
}

// parseExtract is the last-resort strategy: independent regex extraction of
// the vault= and file= substrings, accepting any run of non-whitespace,
// non-ampersand characters as the value.
func parseExtract(s string) (string, string, bool) {
	vm := vaultRe.FindStringSubmatch(s)
	fm := fileRe.FindStringSubmatch(s)
	if vm == nil || fm == nil {
		return "", "", false
	}
	return decodeMaybe(vm[1]), decodeMaybe(fm[1]), true
}

// decodeMaybe attempts percent-decoding once and falls back to the input
// unchanged when the escaping is malformed (input was already decoded).
func decodeMaybe(s string) string {
	if dec, err := url.QueryUnescape(s); err == nil {
		return dec
	}
	return s
}
