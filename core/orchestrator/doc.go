// Package orchestrator runs one chat turn end to end: it resolves the model,
// assembles the prompt, streams the reply from the matching provider and
// relays every delta to the caller in order.
//
// A provider that fails before producing any text is retried once against the
// configured fallback model. When the fallback fails as well the turn ends with
// a canned degraded-service reply, so the caller always has something to
// persist. A provider that fails after text was relayed is never retried: the
// partial text is returned flagged as incomplete.
//
// Basic usage:
//
//	orch, err := orchestrator.New(catalog.Default(), providers,
//	    orchestrator.WithFallbackModel("gpt-4o"),
//	    orchestrator.WithMiddleware(middleware.NewLoggingMiddleware(logger, middleware.LogLevelStandard)),
//	)
//	stream, err := orch.Respond(ctx, conversation, "Hello", "claude-3-5-sonnet")
//	for delta := range stream.Deltas() {
//	    fmt.Print(delta.Content)
//	}
//	reply, err := stream.Result()
package orchestrator
