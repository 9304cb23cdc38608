package models

import "time"

// Timestamps adds GORM auto-times. Rows are hard-deleted so there is no
// DeletedAt column; dependents go with their owner.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// All lists every model for AutoMigrate, parents first.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Property{},
		&PropertyImage{},
		&PropertyFeature{},
		&Investment{},
		&Transaction{},
	}
}
