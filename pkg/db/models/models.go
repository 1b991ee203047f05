package models

// All lists every persisted model, used for sqlite schema bootstrapping.
func All() []any {
	return []any{
		&Product{},
		&Order{},
		&OutboxEvent{},
		&OutboxDLQ{},
		&Notification{},
	}
}
