package models

import (
	"log"

	"bitbucket.org/mmdatafocus/cashflow_recurring/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&MoneyAccount{}, &MoneyTransaction{},
		&RecurringTransaction{},
		&PubSubMessageRecord{},
		&Document{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
