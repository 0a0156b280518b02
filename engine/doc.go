// Package engine wires all Foreman subsystems together. It creates the
// extension registry, master registry, liveness scanner, and event bus,
// and registers the default deactivation observers.
//
// The engine package exists to break a fundamental import cycle: the
// root foreman package defines the Coordinator and sentinel errors
// (imported by master, build, etc.) and therefore cannot import those
// packages back. Engine sits above all subsystem packages and below the
// application layer.
//
// # Building an Engine
//
//	c, err := foreman.New(
//	    foreman.WithStore(pgStore),
//	    foreman.WithExpiryThreshold(10*time.Minute),
//	)
//
//	eng, err := engine.Build(c,
//	    engine.WithExtension(myExtension),
//	)
//
// # Running
//
//	if err := eng.Start(ctx); err != nil { ... }
//	defer eng.Stop(ctx)
//
//	// Register this process and start heartbeating.
//	m, _ := eng.Registry().Ensure(ctx, "master-a")
//	eng.Registry().RegisterHeartbeat(ctx, m.Name, m.ID)
//
// # Options
//
//   - [WithExtension] — register a lifecycle extension
//   - [WithScannerOptions] — tune the liveness scanner
//   - [WithTracerProvider] — set the OpenTelemetry tracer provider
//   - [WithMeterProvider] — set the OpenTelemetry meter provider
package engine
