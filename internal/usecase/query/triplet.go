package query

import (
	"fmt"
	"regexp"

	"github.com/booksage/community-retriever/internal/domain/repository"
)

// TripletSeparator joins the parts of a triplet in node text.
const TripletSeparator = " -> "

// FormatTriplet renders a triplet as "subject -> relation -> object", the text
// form the retrievers put on graph nodes and TripletParser reads back.
func FormatTriplet(t repository.Triplet) string {
	return fmt.Sprintf("%s%s%s%s%s", t.Subject, TripletSeparator, t.Relation, TripletSeparator, t.Object)
}

// TripletParser finds triplets embedded in free text.
type TripletParser interface {
	Parse(text string) []repository.Triplet
}

// space is any Unicode whitespace, including the vertical tab, NEL, no-break
// space and the information separators, which RE2's \s leaves out.
const space = `[\s\v\p{Z}\x{85}\x{1c}-\x{1f}]`

// words is a run of word characters separated by whitespace. Word characters are
// Unicode letters, digits and underscore.
const words = `([\p{L}\p{N}_]+(?:` + space + `+[\p{L}\p{N}_]+)*)`

const arrow = space + `*->` + space + `*`

var arrowTriplet = regexp.MustCompile(`(?s)` + words + arrow + words + arrow + words)

// ArrowTripletParser matches every non-overlapping "a -> b -> c" in the text.
type ArrowTripletParser struct{}

// Parse implements TripletParser.
func (ArrowTripletParser) Parse(text string) []repository.Triplet {
	matches := arrowTriplet.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]repository.Triplet, 0, len(matches))
	for _, m := range matches {
		out = append(out, repository.Triplet{Subject: m[1], Relation: m[2], Object: m[3]})
	}
	return out
}
