package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
)

type Repositories struct {
	UserRepo UserRepository

	// FamilyStore is the fallback-wrapped registry store; Families keeps a
	// handle on the wrapper for health reporting and reconciliation.
	FamilyStore FamilyStore
	Families    *FallbackFamilyStore

	DocumentStore DocumentStore
}

func NewRepositories(pool *pgxpool.Pool, db *sqlx.DB) *Repositories {
	families := NewFallbackFamilyStore(NewFamilyStore(pool))
	return &Repositories{
		UserRepo:      NewUserRepository(db),
		FamilyStore:   families,
		Families:      families,
		DocumentStore: NewDocumentStore(pool),
	}
}
