package material

import (
	"sort"
	"strings"

	"github.com/trezcool/orbit/core"
)

// OrderingFields are the fields records can be sorted by.
var OrderingFields = []string{"title", "type", "size", "createdAt", "collection"}

// DefaultOrdering lists the newest materials first.
var DefaultOrdering = []core.DBOrdering{{Field: "createdAt"}}

func compare(a, b Record, field string) int {
	switch field {
	case "title":
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case "type":
		return strings.Compare(a.Type, b.Type)
	case "size":
		switch {
		case a.Size < b.Size:
			return -1
		case a.Size > b.Size:
			return 1
		}
	case "createdAt":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	case "collection":
		return strings.Compare(strings.ToLower(a.CollectionName), strings.ToLower(b.CollectionName))
	}
	return 0
}

// SortRecords sorts records in place, by each ordering in turn. Unknown fields are ignored.
func SortRecords(records []Record, orderings []core.DBOrdering) {
	if len(orderings) == 0 {
		orderings = DefaultOrdering
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, ord := range orderings {
			c := compare(records[i], records[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func IsOrderingField(field string) bool {
	for _, f := range OrderingFields {
		if f == field {
			return true
		}
	}
	return false
}
