package query

import (
	"testing"

	"github.com/booksage/community-retriever/internal/domain/repository"
	"github.com/stretchr/testify/assert"
)

func TestArrowTripletParser(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []repository.Triplet
	}{
		{
			name: "single triplet",
			text: "Paris -> capitalOf -> France",
			want: []repository.Triplet{{Subject: "Paris", Relation: "capitalOf", Object: "France"}},
		},
		{
			name: "multi word parts",
			text: "Ada Lovelace -> worked with -> Charles Babbage",
			want: []repository.Triplet{{Subject: "Ada Lovelace", Relation: "worked with", Object: "Charles Babbage"}},
		},
		{
			name: "two triplets separated by punctuation",
			text: "Alice -> KNOWS -> Bob; Bob -> MEMBER_OF -> Chess Club",
			want: []repository.Triplet{
				{Subject: "Alice", Relation: "KNOWS", Object: "Bob"},
				{Subject: "Bob", Relation: "MEMBER_OF", Object: "Chess Club"},
			},
		},
		{
			name: "no spaces around arrows",
			text: "A->r->B",
			want: []repository.Triplet{{Subject: "A", Relation: "r", Object: "B"}},
		},
		{
			name: "unicode letters",
			text: "Zürich -> liegt in -> Schweiz",
			want: []repository.Triplet{{Subject: "Zürich", Relation: "liegt in", Object: "Schweiz"}},
		},
		{
			name: "no-break spaces inside names",
			text: "New\u00a0York -> locatedIn -> United\u00a0States",
			want: []repository.Triplet{{Subject: "New\u00a0York", Relation: "locatedIn", Object: "United\u00a0States"}},
		},
		{
			name: "vertical tab inside a name",
			text: "New\vYork -> in -> USA",
			want: []repository.Triplet{{Subject: "New\vYork", Relation: "in", Object: "USA"}},
		},
		{
			name: "unicode spaces around arrows",
			text: "Tokyo\u3000->\u2009capitalOf\u00a0->\u0085Japan",
			want: []repository.Triplet{{Subject: "Tokyo", Relation: "capitalOf", Object: "Japan"}},
		},
		{
			name: "plain prose",
			text: "This node has no structured content.",
			want: nil,
		},
		{
			name: "incomplete triplet",
			text: "Paris -> capitalOf",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ArrowTripletParser{}.Parse(tt.text))
		})
	}
}

func TestFormatTripletIsParsedBack(t *testing.T) {
	triplet := repository.Triplet{Subject: "Marie Curie", Relation: "WON", Object: "Nobel Prize"}

	text := FormatTriplet(triplet)

	assert.Equal(t, "Marie Curie -> WON -> Nobel Prize", text)
	assert.Equal(t, []repository.Triplet{triplet}, ArrowTripletParser{}.Parse(text))
}
