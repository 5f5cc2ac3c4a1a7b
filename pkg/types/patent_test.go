package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatentContentHash(t *testing.T) {
	base := Patent{
		DocID:      "US20240001",
		DocType:    DocTypeApplication,
		Title:      "Folding ladder",
		Abstract:   "A ladder that folds into a stool.",
		SourceFile: "ipa240104.xml",
	}

	tests := []struct {
		name    string
		mutate  func(p *Patent)
		changed bool
	}{
		{name: "identical", mutate: func(p *Patent) {}, changed: false},
		{name: "doc id ignored", mutate: func(p *Patent) { p.DocID = "US20240002" }, changed: false},
		{name: "doc type", mutate: func(p *Patent) { p.DocType = DocTypeGrant }, changed: true},
		{name: "source file", mutate: func(p *Patent) { p.SourceFile = "ipg240109.xml" }, changed: true},
		{name: "title", mutate: func(p *Patent) { p.Title = "Folding step ladder" }, changed: true},
		{name: "claims", mutate: func(p *Patent) { p.Claims = "1. A ladder." }, changed: true},
		{
			// Field boundaries are part of the hash
			name: "text moved between fields",
			mutate: func(p *Patent) {
				p.Title = "Folding ladderA ladder that folds into a stool."
				p.Abstract = ""
			},
			changed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			if tt.changed {
				assert.NotEqual(t, base.ContentHash(), p.ContentHash())
			} else {
				assert.Equal(t, base.ContentHash(), p.ContentHash())
			}
		})
	}
}

func TestPatentValidate(t *testing.T) {
	assert.ErrorIs(t, (&Patent{DocID: " ", Title: "x"}).Validate(), ErrInvalidDocID)
	assert.Error(t, (&Patent{DocID: "US1"}).Validate())
	assert.NoError(t, (&Patent{DocID: "US1", Claims: "1. A widget."}).Validate())
}
