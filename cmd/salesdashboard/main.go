package main

import (
	"go.uber.org/fx"

	"github.com/johnanishgitc/salesdashboard/internal/aggregate"
	"github.com/johnanishgitc/salesdashboard/internal/card"
	"github.com/johnanishgitc/salesdashboard/internal/cardconfig"
	"github.com/johnanishgitc/salesdashboard/internal/clock"
	"github.com/johnanishgitc/salesdashboard/internal/config"
	"github.com/johnanishgitc/salesdashboard/internal/dashboard"
	"github.com/johnanishgitc/salesdashboard/internal/ingest"
	"github.com/johnanishgitc/salesdashboard/internal/migration"
	"github.com/johnanishgitc/salesdashboard/internal/observability/metrics"
	"github.com/johnanishgitc/salesdashboard/internal/schema"
	"github.com/johnanishgitc/salesdashboard/internal/server"
	"github.com/johnanishgitc/salesdashboard/internal/syncer"
	"github.com/johnanishgitc/salesdashboard/internal/tally"
	"github.com/johnanishgitc/salesdashboard/pkg/db"
	"github.com/johnanishgitc/salesdashboard/pkg/log"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		metrics.Module,
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		tally.Module,
		ingest.Module,
		aggregate.Module,
		schema.Module,
		dashboard.Module,
		card.Module,
		cardconfig.Module,
		syncer.Module,

		server.Module,
	)
	app.Run()
}
