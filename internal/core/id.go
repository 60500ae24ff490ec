package core

import "github.com/google/uuid"

// NewID mints a job identifier. UUID v7 is time-ordered, so job listings
// sort by creation time without consulting another column.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
