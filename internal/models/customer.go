package models

import "time"

// CustomerProfile is keyed by the customer's phone number.
type CustomerProfile struct {
	ID   string `json:"id" gorm:"primaryKey;size:64"`
	Name string `json:"name"`
	Level     string     `json:"level" gorm:"default:'Pasante'"` // Pasante, Asociado, Magistrado
	LastVisit *time.Time `json:"last_visit"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
