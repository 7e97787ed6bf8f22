package main

import (
	"github.com/playreport/api/internal/infra/postgres"
)

// Repositories holds all repository instances.
type Repositories struct {
	Store       *postgres.ReportStore
	SavedReport *postgres.SavedReportRepository
	Execution   *postgres.ExecutionRepository
	Identity    *postgres.IdentityRepository
}

// NewRepositories creates all repositories over one connection pool.
func NewRepositories(db *postgres.DB, storeOpts ...postgres.ReportStoreOption) *Repositories {
	return &Repositories{
		Store:       postgres.NewReportStore(db, storeOpts...),
		SavedReport: postgres.NewSavedReportRepository(db),
		Execution:   postgres.NewExecutionRepository(db),
		Identity:    postgres.NewIdentityRepository(db),
	}
}
