package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectFacts(t *testing.T) {
	tests := []struct {
		utterance string
		want      []Fact
	}{
		{"Which database am I on?", []Fact{FactIdentity}},
		{"what  DB is this", []Fact{FactIdentity}},
		{"are we connected to the production database", []Fact{FactIdentity}},
		{"connected to what?", nil},
		{"how many tables are there", []Fact{FactTableCount}},
		{"what database is this and how many tables does it have", []Fact{FactIdentity, FactTableCount}},
		{"give me the table count", []Fact{FactTableCount}},
		{"how many films", nil},
		{"list brand names", nil},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFacts(tt.utterance))
		})
	}
}

func TestDecideFacts(t *testing.T) {
	d, facts, ok := DecideFacts("how many tables does it have")
	assert.True(t, ok)
	assert.Equal(t, ActionFacts, d.Action)
	assert.Equal(t, IntentCount, d.Intent)
	assert.Equal(t, []Fact{FactTableCount}, facts)

	_, _, ok = DecideFacts("how many users")
	assert.False(t, ok)
}
