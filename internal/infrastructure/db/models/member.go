package models

import "time"

type Member struct {
	ID           string  `gorm:"type:uuid;primaryKey"`
	TenantID     string  `gorm:"type:text;not null;index"`
	Name         string  `gorm:"type:text;not null"`
	Email        *string `gorm:"type:text"`
	Username     *string `gorm:"type:text"`
	Role         string  `gorm:"type:text;not null"`
	Department   string  `gorm:"type:text;not null;default:''"`
	Position     string  `gorm:"type:text;not null;default:''"`
	Shift        string  `gorm:"type:text;not null;default:''"`
	EmployeeID   *string `gorm:"type:text"`
	PersonID     string  `gorm:"type:text;not null"`
	ManagerID    *string `gorm:"type:uuid"`
	WorkerType   string  `gorm:"type:text;not null;default:'office'"`
	PasswordHash string  `gorm:"type:text;not null;default:''"`
	PIN          string  `gorm:"column:pin;type:text;not null;default:''"`
	Status       string  `gorm:"type:text;not null;default:'active'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Member) TableName() string {
	return "members"
}
