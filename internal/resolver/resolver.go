// Package resolver locates a vault-relative file reference on disk by probing
// an ordered list of candidate paths.
package resolver

import (
	"os"
	"path/filepath"
	"strings"
)

// Candidates returns the ordered list of paths probed for ref under root:
// the exact reference with .md, bare, and as a directory index; the same
// three with surviving %20 sequences converted to spaces; then lower- and
// upper-cased filename variants. Exact match beats normalization beats
// case-folding — exact candidates are the fastest to confirm and the least
// likely to pick the wrong file when several coincidentally exist.
func Candidates(root, ref string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	variants := func(r string) {
		add(filepath.Join(root, r+".md"))
		add(filepath.Join(root, r))
		add(filepath.Join(root, r, "index.md"))
	}

	variants(ref)
	if unescaped := strings.ReplaceAll(ref, "%20", " "); unescaped != ref {
		variants(unescaped)
	}
	add(filepath.Join(root, strings.ToLower(ref+".md")))
	add(filepath.Join(root, strings.ToUpper(ref+".md")))
	return out
}

// Resolve returns the first candidate that exists as a regular file. The
// false return is an expected, common outcome (file renamed or deleted
// upstream), not an error; filesystem failures on a candidate (permissions,
// I/O) count as absence for that candidate. Candidates that escape the vault
// root (references with .. segments) are treated as absent: a link must never
// read outside its mapped vault. Resolve never writes.
func Resolve(root, ref string) (string, bool) {
	if root == "" || ref == "" {
		return "", false
	}
	cleanRoot := filepath.Clean(root)
	for _, c := range Candidates(root, ref) {
		if !strings.HasPrefix(c, cleanRoot+string(os.PathSeparator)) {
			continue
		}
		info, err := os.Stat(c)
		if err != nil || info.IsDir() {
			continue
		}
		return c, true
	}
	return "", false
}
