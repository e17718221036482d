package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей движка повторяющихся операций.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&RecurringTemplate{},
		&TemplateSkipDate{},
		&UpcomingInstance{},
		&Event{},
	)
}
