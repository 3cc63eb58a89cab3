package models

import (
	"time"

	"gorm.io/datatypes"
)

type MenuItem struct {
	ID          string                      `json:"id" yaml:"id" gorm:"primaryKey;size:64"`
	Name        string                      `json:"name" yaml:"name" gorm:"not null"`
	Price       float64                     `json:"price" yaml:"price" gorm:"not null"`
	Category    Category                    `json:"category" yaml:"category" gorm:"type:varchar(20);default:'bebida'"`
	Description string                      `json:"description,omitempty" yaml:"description"`
	PrepMinutes int                         `json:"prep_minutes" yaml:"prep_minutes" gorm:"default:5"`
	Available   bool                        `json:"available" yaml:"available" gorm:"index"`
	Modifiers   datatypes.JSONSlice[string] `json:"modifiers" yaml:"modifiers"`
	ImageURL    string                      `json:"image_url,omitempty" yaml:"image_url"`
	CreatedAt   time.Time                   `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time                   `json:"updated_at" yaml:"-"`
}

type Category string

const (
	CategoryDrink   Category = "bebida"
	CategoryFood    Category = "alimento"
	CategoryDessert Category = "postre"
)
