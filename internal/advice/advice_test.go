package advice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRespond(t *testing.T) {
	tests := []struct {
		message string
		prefix  string
	}{
		{"How much NITROGEN do tomatoes need?", "Nitrogen is crucial"},
		{"phosphorus for roots", "Phosphorus promotes"},
		{"what about potassium", "Potassium enhances"},
		{"my soil is too acidic", "Soil pH affects"},
		{"what pH is best", "Soil pH affects"},
		{"how do I make compost", "Organic matter improves"},
		{"which crop should I grow", "Crop selection"},
		{"best fertilizer?", "Choose fertilizers"},
		{"how often to water", "Proper soil moisture"},
		{"soil temperature", "Soil temperature affects"},
		{"insect damage on leaves", "Integrated Pest Management"},
		{"leaf disease", "Plant diseases"},
		{"getting ready for spring", "Spring preparation"},
		{"autumn tasks", "Fall activities"},
		{"going organic", "Organic farming"},
		{"drip irrigation", "Efficient irrigation"},
		{"hello there", "I can help you"},
		{"", "I can help you"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := Respond(tt.message)
			assert.True(t, strings.HasPrefix(got, tt.prefix), "got %q", got)
		})
	}
}

func TestRespond_FirstTopicWins(t *testing.T) {
	// "phosphorus" contains "ph" but its own topic comes first.
	assert.Equal(t, Respond("phosphorus"), topics[1].answer)
	// Nitrogen outranks fertilizer.
	assert.Equal(t, topics[0].answer, Respond("nitrogen fertilizer"))
	// "organic matter" outranks the general organic topic.
	assert.Equal(t, topics[4].answer, Respond("organic matter levels"))
}

func TestRespond_IsPure(t *testing.T) {
	assert.Equal(t, Respond("water"), Respond("water"))
}
