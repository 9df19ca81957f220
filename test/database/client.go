// Package database provides test helpers for constructing database-backed
// stores in integration tests.
package database

import (
	"testing"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/database"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/test/util"
)

// NewTestClient creates a test database client.
// In CI (when CI_DATABASE_URL is set): connects to external PostgreSQL service container.
// In local dev: spins up a testcontainer with PostgreSQL.
// The schema and connection are automatically cleaned up when the test ends.
func NewTestClient(t *testing.T) *database.Client {
	db := util.SetupTestDatabase(t)
	return database.NewClientFromDB(db)
}
