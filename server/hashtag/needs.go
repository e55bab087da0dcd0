package hashtag

import "strings"

// needTags builds hashtags from an alert's need categories.
//
// Every need becomes one CamelCase tag. A need of the form "X and Y" also
// yields #X and #Y so that related alerts share tags:
//   - "medical" -> #Medical
//   - "search and rescue" -> #SearchAndRescue, #Search, #Rescue
//   - "mental health" -> #MentalHealth
func needTags(needs []string) []string {
	var tags []string

	for _, need := range needs {
		words := strings.Fields(need)
		if len(words) == 0 {
			continue
		}

		tags = append(tags, "#"+camelCase(need))

		if len(words) == 3 && strings.EqualFold(words[1], "and") {
			tags = append(tags, "#"+camelCase(words[0]), "#"+camelCase(words[2]))
		}
	}

	return tags
}
