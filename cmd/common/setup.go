// Package common provides the service wiring shared by commands.
package common

import (
	"fmt"

	"finrecon/bankrecon/internal/candidates"
	"finrecon/bankrecon/internal/config"
	"finrecon/bankrecon/internal/ledger"
	"finrecon/bankrecon/internal/matcher"
	"finrecon/bankrecon/internal/store"

	"github.com/sirupsen/logrus"
)

// BuildService assembles the reconciliation service from configuration.
// With a database DSN configured it runs against Postgres; without one it
// falls back to the in-memory store and ledger, which is enough for
// one-shot imports and local experiments.
func BuildService(cfg *config.Config, log *logrus.Logger) (*matcher.Service, error) {
	var (
		st  store.Store
		tl  *ledger.GormLedger
		svc *matcher.Service
	)

	if cfg.Database.DSN != "" {
		gs, err := store.Open(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		st = gs
		tl, err = ledger.NewGormLedger(gs.DB())
		if err != nil {
			return nil, fmt.Errorf("preparing ledger tables: %w", err)
		}
		svc = matcher.New(st, tl, tl, cfg.Matching)
		log.Info("Using Postgres store")
	} else {
		ml := ledger.NewMemoryLedger(nil)
		svc = matcher.New(store.NewMemoryStore(), ml, ml, cfg.Matching)
		log.Warn("No DATABASE_URL configured, using in-memory store")
	}

	aliases, err := candidates.NewAliasStore(cfg.Matching.AliasFile).Load()
	if err != nil {
		return nil, err
	}
	svc.SetAliases(aliases)
	return svc, nil
}
