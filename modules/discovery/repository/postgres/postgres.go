package postgres

import (
	"github.com/veil-network/pool-scanner/internal/postgres"
	"github.com/veil-network/pool-scanner/pkg/crypto"
)

type Repository struct {
	db postgres.DB

	// cryptoClient encrypts chain payloads at rest. Optional: when nil the
	// payload is stored as plain JSON.
	cryptoClient *crypto.Client
}

func NewRepository(db postgres.DB, cryptoClient *crypto.Client) *Repository {
	return &Repository{
		db:           db,
		cryptoClient: cryptoClient,
	}
}
