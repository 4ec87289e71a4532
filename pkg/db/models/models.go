package models

// All returns every persisted model in dependency order, for gorm AutoMigrate
// on SQLite dev databases.
func All() []any {
	return []any{
		&User{},
		&VerificationCode{},
		&Category{},
		&Subcategory{},
		&Product{},
		&OptionGroup{},
		&Option{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
