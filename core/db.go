package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrderings reads a `-createdAt,title` style list; a leading "-" means descending.
func ParseOrderings(s string) []DBOrdering {
	var orderings []DBOrdering
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		orderings = append(orderings, DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings
}
