package models

import "time"

// Subject is a tutorable course offering. The catalog is ordered explicitly
// so the booking form can group entries by category in a stable order.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Category  string    `db:"category" json:"category"`
	SortOrder int       `db:"sort_order" json:"sort_order"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectGroup bundles subjects sharing a display category.
type SubjectGroup struct {
	Category string    `json:"category"`
	Subjects []Subject `json:"subjects"`
}

// GroupSubjects partitions an ordered subject list into category groups,
// preserving the catalog order within and across groups.
func GroupSubjects(subjects []Subject) []SubjectGroup {
	var groups []SubjectGroup
	for _, subject := range subjects {
		if len(groups) == 0 || groups[len(groups)-1].Category != subject.Category {
			groups = append(groups, SubjectGroup{Category: subject.Category})
		}
		last := &groups[len(groups)-1]
		last.Subjects = append(last.Subjects, subject)
	}
	return groups
}
