package topics

import "strings"

var synonyms = map[string]string{
	"food": TagFood, "cooking": TagFood, "cuisine": TagFood, "baking": TagFood,
	"recipes": TagFood, "restaurants": TagFood, "eating": TagFood,

	"travel": TagTravel, "traveling": TagTravel, "travelling": TagTravel,
	"trips": TagTravel, "vacation": TagTravel, "vacations": TagTravel,

	"work": TagWork, "job": TagWork, "career": TagWork, "business": TagWork,

	"family": TagFamily, "kids": TagFamily, "children": TagFamily,
	"parents": TagFamily, "parenting": TagFamily,

	"hobbies": TagHobbies, "hobby": TagHobbies, "pastimes": TagHobbies,

	"technology": TagTechnology, "tech": TagTechnology, "computers": TagTechnology,
	"programming": TagTechnology, "coding": TagTechnology, "software": TagTechnology,
	"gadgets": TagTechnology,

	"weather": TagWeather, "climate": TagWeather, "seasons": TagWeather,
}

// ParseInterests turns free-text interests ("Cooking, hiking; jazz") into
// normalized tags. Known synonyms map onto the canonical tags, anything
// else is kept as a literal lower-cased tag. Order of first appearance is
// preserved and duplicates are removed.
func ParseInterests(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ',', ';', '\n', '/', '|':
			return true
		}
		return false
	})

	var tags []string
	seen := make(map[string]bool)
	for _, f := range fields {
		for _, part := range splitAnd(f) {
			tag := normalizeInterest(part)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

// splitAnd breaks "cooking and hiking" into its two interests.
func splitAnd(field string) []string {
	var parts []string
	var cur []string
	for _, w := range strings.Fields(field) {
		if strings.EqualFold(w, "and") || w == "&" {
			parts = append(parts, strings.Join(cur, " "))
			cur = nil
			continue
		}
		cur = append(cur, w)
	}
	return append(parts, strings.Join(cur, " "))
}

func normalizeInterest(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".!?:\"' ")
	s = strings.Join(strings.Fields(s), " ")
	if tag, ok := synonyms[s]; ok {
		return tag
	}
	return s
}
