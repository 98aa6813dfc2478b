package postgres

import (
	"github.com/jinzhu/gorm"

	C "crmhub/config"
	"crmhub/model/model"
)

// Postgres - gorm backed store. Stateless; the shared DB handle comes
// from the service container.
type Postgres struct {
}

func db() *gorm.DB {
	return C.GetServices().Db
}

// Migrate creates or updates the engine tables. The composite primary
// keys on execution_records and entity_activity double as the uniqueness
// constraints the dispatcher and scanner rely on.
func Migrate() error {
	return db().AutoMigrate(
		&model.AutomationRule{},
		&model.Event{},
		&model.EntityActivity{},
		&model.ExecutionRecord{},
	).Error
}
