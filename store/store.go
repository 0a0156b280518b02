// Package store defines the aggregate persistence interface. Each
// subsystem (master, build, request, scheduler, changesource, builder,
// agent) defines its own store interface. The composite Store composes
// them all. Backends: Postgres and Memory.
package store

import (
	"context"

	"github.com/xraph/foreman/agent"
	"github.com/xraph/foreman/build"
	"github.com/xraph/foreman/builder"
	"github.com/xraph/foreman/changesource"
	"github.com/xraph/foreman/master"
	"github.com/xraph/foreman/request"
	"github.com/xraph/foreman/scheduler"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface; a single backend
// (postgres, memory) implements all of them.
type Store interface {
	master.Store
	build.Store
	request.Store
	scheduler.Store
	changesource.Store
	builder.Store
	agent.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks store connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
