package domain

// SuggestedTopics returns the topics offered to callers of the topic search.
func SuggestedTopics() []string {
	return []string{
		"Mathematics",
		"Physics",
		"Chemistry",
		"Biology",
		"History",
		"Geography",
		"Literature",
		"Computer Science",
		"Economics",
		"Psychology",
		"Philosophy",
		"Art History",
		"Music Theory",
		"Foreign Languages",
		"Environmental Science",
		"Astronomy",
		"Anatomy",
		"World Religions",
		"Political Science",
		"Sociology",
	}
}
