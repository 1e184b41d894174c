// Package distributed loads independently built UI extension bundles into a
// running host application.
//
// A bundle is a WebAssembly core module. Its module definition (components,
// directives, description, dependencies) is JSON stored in a custom section,
// and its renderable units are exported functions. Bundles are fetched from a
// location, verified against a detached SRI digest, executed by a code loader,
// normalized, registered, and installed into the host exactly once.
//
// # Architecture Overview
//
//	distributed/         Host capability interfaces (Host, Unit, Callable)
//	├── session/         Per-host loading session, the entry point
//	├── location/        Canonical module names from locations
//	├── integrity/       SRI digest computation and verification
//	├── fetch/           HTTP and file transport with optional cache
//	├── store/           SQLite bundle cache keyed by digest
//	├── importer/        Direct and archive import with shared handles
//	├── loader/          Code loader interface and wazero backend
//	├── bundle/          Custom section reader/writer and archive packing
//	├── definition/      Definition normalizer
//	├── registry/        Frozen module records
//	├── install/         Idempotent install procedures and hash ledger
//	├── version/         Host/module version comparison
//	├── config/          Environment configuration and manifests
//	├── telemetry/       OpenTelemetry tracing setup
//	├── errors/          Structured error types
//	└── cmd/distributed/ Command line loader and inspector
//
// # Quick Start
//
//	s, err := session.New(ctx, host, session.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close(ctx)
//
//	proc, err := s.LoadModule(ctx, "https://cdn.example.com/charts.umd.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := proc.Install(ctx, host); err != nil {
//	    log.Fatal(err)
//	}
//
// # Bundle Layout
//
// A location L is paired with a sidecar L + ".sri" holding "sha384-<base64>".
// Archive locations end in ".zip" and contain "<name>.umd.wasm" and its
// ".sri" entry. The definition lives in the "distributed.plugin" custom
// section, falling back to "distributed.default"; build information lives in
// "distributed.build".
package distributed
