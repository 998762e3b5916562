package delivery

import "strings"

// gradePriority is the order grades are tested in. The most severe match wins.
var gradePriority = []Grade{GradeHazardous, GradeSevere, GradeMild}

// Classify returns the grade of a phenomenon description. A phenomenon matches
// a grade when it contains any of that grade's keywords, case-insensitively.
func Classify(phenomenon string, vocabulary Vocabulary) Grade {
	text := strings.ToLower(strings.TrimSpace(phenomenon))
	if text == "" {
		return GradeNone
	}

	for _, grade := range gradePriority {
		for _, keyword := range vocabulary[grade] {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword != "" && strings.Contains(text, keyword) {
				return grade
			}
		}
	}

	return GradeNone
}
