package domain

// Models lists every persisted type, in migration order.
func Models() []interface{} {
	return []interface{}{
		&User{},
		&LedgerToken{},
		&LedgerAccount{},
		&Asset{},
		&YieldSnapshot{},
		&SettlementEvent{},
		&Payment{},
	}
}
