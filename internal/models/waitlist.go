package models

import "gorm.io/gorm"

// WaitlistEntry is a single registration keyed by email. Email carries a
// plain index, NOT a unique one: overlapping registrations can insert the
// same address twice and the deletion path is expected to clean that up.
type WaitlistEntry struct {
	gorm.Model
	Email string `gorm:"not null;index"`
}
