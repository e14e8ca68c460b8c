// Package decorate annotates deep-link occurrences found in rendered content
// with their resolution status. Decoration is a pure function of the content
// and registry state: applying it twice to the same document yields identical
// annotations, so hosts can re-run it freely instead of replacing elements.
package decorate

import (
	"fmt"
	"regexp"

	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/linkservice"
)

// linkRe matches obsidian://open deep links embedded in rendered text. The
// value class stops at whitespace and common markup delimiters so links
// inside Markdown and HTML constructs terminate correctly.
var linkRe = regexp.MustCompile(`obsidian://open\?[^\s<>"')\]]+`)

// Visual classes attached per status.
const (
	ClassMapped   = "deeplink-mapped"
	ClassUnmapped = "deeplink-unmapped"
	ClassMissing  = "deeplink-missing"
)

// Occurrence is one annotated deep link in a document. ID is stable for a
// given document (occurrence ordinal plus a digest of the raw link), letting
// hosts key handlers by occurrence instead of by DOM node.
type Occurrence struct {
	ID     string             `json:"id"`
	Raw    string             `json:"raw"`
	Start  int                `json:"start"`
	End    int                `json:"end"`
	Status linkservice.Status `json:"status"`
	Vault  string             `json:"vault"`
	File   string             `json:"file"`
	Class  string             `json:"class"`
}

// Decorator classifies every deep link found in rendered content.
type Decorator struct {
	svc *linkservice.Service
}

// New creates a decorator over the given link service.
func New(svc *linkservice.Service) *Decorator {
	return &Decorator{svc: svc}
}

// Decorate scans content and returns one annotation per recognizable link
// occurrence. Unparseable matches are skipped and left untouched by the
// host. Content is never mutated.
func (d *Decorator) Decorate(content string) []Occurrence {
	locs := linkRe.FindAllStringIndex(content, -1)
	out := make([]Occurrence, 0, len(locs))
	for i, loc := range locs {
		raw := content[loc[0]:loc[1]]
		cls, err := d.svc.Classify(raw)
		if err != nil {
			continue
		}
		out = append(out, Occurrence{
			ID:     occurrenceID(i, raw),
			Raw:    raw,
			Start:  loc[0],
			End:    loc[1],
			Status: cls.Status,
			Vault:  cls.Vault,
			File:   cls.File,
			Class:  classFor(cls.Status),
		})
	}
	return out
}

func classFor(s linkservice.Status) string {
	switch s {
	case linkservice.StatusMapped:
		return ClassMapped
	case linkservice.StatusMissing:
		return ClassMissing
	default:
		return ClassUnmapped
	}
}

func occurrenceID(ordinal int, raw string) string {
	return fmt.Sprintf("%d-%s", ordinal, checksum.Sum([]byte(raw))[:12])
}
