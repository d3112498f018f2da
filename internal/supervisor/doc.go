// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

/*
Package supervisor runs the serve-mode services under suture v4.

The tree is small:

	RootSupervisor ("clickshield")
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashed HTTP server is restarted with suture's backoff. Supervisor events
are logged through sutureslog into the zerolog-backed slog handler:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	err = tree.Serve(ctx)

Serve returns when ctx is canceled, after every service has stopped or the
shutdown timeout has elapsed.
*/
package supervisor
