package hashtag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crisisdesk/alertdeck/server/backend"
)

func TestGenerate(t *testing.T) {
	t.Run("tier, places and needs in order", func(t *testing.T) {
		alert := backend.Alert{
			UrgencyScore: 45,
			Location:     []string{"Kyiv", "Ukraine"},
			Needs:        []string{"medical", "search and rescue"},
		}

		expected := "🏷️ #Critical, #Kyiv, #Ukraine, #Medical, #SearchAndRescue, #Search, #Rescue"
		assert.Equal(t, expected, Generate(alert))
	})

	t.Run("expands a US state with country context", func(t *testing.T) {
		alert := backend.Alert{
			UrgencyScore: 20,
			Location:     []string{"San Francisco", "CA", "USA"},
			Needs:        []string{"fire"},
		}

		result := Generate(alert)
		assert.Contains(t, result, "#Medium")
		assert.Contains(t, result, "#SanFrancisco")
		assert.Contains(t, result, "#California")
		assert.Contains(t, result, "#UnitedStates")
		assert.Contains(t, result, "#Fire")
	})

	t.Run("no location", func(t *testing.T) {
		alert := backend.Alert{UrgencyScore: 3, Needs: []string{"shelter", "food and water"}}
		assert.Equal(t, "🏷️ #Low, #Shelter, #FoodAndWater, #Food, #Water", Generate(alert))
	})

	t.Run("only the tier", func(t *testing.T) {
		assert.Equal(t, "🏷️ #Low", Generate(backend.Alert{}))
	})

	t.Run("deduplicates case-insensitively", func(t *testing.T) {
		alert := backend.Alert{
			UrgencyScore: 30,
			Location:     []string{"Medical District"},
			Needs:        []string{"Food and Water", "food", "water"},
		}

		assert.Equal(t, "🏷️ #Critical, #MedicalDistrict, #FoodAndWater, #Food, #Water", Generate(alert))
	})
}

func TestLocationTags(t *testing.T) {
	tests := []struct {
		name     string
		places   []string
		expected []string
	}{
		{"empty", nil, nil},
		{"single city", []string{"Springfield"}, []string{"#Springfield"}},
		{"city and country", []string{"Kyiv", "Ukraine"}, []string{"#Kyiv", "#Ukraine"}},
		{"ambiguous state code is skipped", []string{"Springfield", "IL"}, []string{"#Springfield"}},
		{"street detail is dropped", []string{"221 Baker Street", "Kyiv", "Ukraine"}, []string{"#Kyiv", "#Ukraine"}},
		{"state with postcode keeps the code", []string{"Austin", "TX 78701", "USA"}, []string{"#Austin", "#Texas", "#UnitedStates"}},
		{"canadian province", []string{"Toronto", "ON", "Canada"}, []string{"#Toronto", "#Ontario", "#Canada"}},
		{"only the last three places", []string{"Pier 9", "Harbor", "Oakland", "CA", "USA"}, []string{"#Oakland", "#California", "#UnitedStates"}},
		{"blank entries", []string{" ", ""}, nil},
		{"multi word place", []string{"old mill road"}, []string{"#OldMillRoad"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, locationTags(tc.places))
		})
	}
}

func TestNeedTags(t *testing.T) {
	assert.Nil(t, needTags(nil))
	assert.Equal(t, []string{"#Medical"}, needTags([]string{"medical"}))
	assert.Equal(t, []string{"#MentalHealth"}, needTags([]string{"mental health"}))
	assert.Equal(t, []string{"#SearchAndRescue", "#Search", "#Rescue"}, needTags([]string{"search and rescue"}))
	assert.Equal(t, []string{"#Evacuation"}, needTags([]string{"  ", "evacuation"}))
}

func TestCamelCase(t *testing.T) {
	assert.Equal(t, "SanFrancisco", camelCase("san francisco"))
	assert.Equal(t, "FoodWater", camelCase("food & water"))
	assert.Equal(t, "ÉcoleNormale", camelCase("école normale"))
	assert.Empty(t, camelCase("  "))
}

func TestDeduplicateTags(t *testing.T) {
	assert.Equal(t, []string{"#Fire", "#Flood"}, deduplicateTags([]string{"#Fire", "#fire", "#Flood", "", "#"}))
	assert.Empty(t, formatHashtagText(nil))
}
