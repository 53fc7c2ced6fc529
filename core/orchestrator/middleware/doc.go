// Package middleware provides stream middlewares for the chat orchestrator.
// Each middleware is constructed via a New* function that returns an
// [orchestrator.StreamMiddleware] ready to be passed to
// [orchestrator.WithMiddleware].
//
// # Available Middleware
//
//   - [NewObservabilityMiddleware]: Opens an "llm.request" span per provider
//     attempt and places it in the context handed to the provider.
//
//   - [NewTimeoutMiddleware]: Bounds the whole lifetime of one provider
//     stream, from the request until the last event is read.
//
//   - [NewLoggingMiddleware]: Emits structured slog entries when a provider
//     stream opens and when it ends, with three verbosity levels.
//
// The package has no retry middleware: the orchestrator owns the single
// fallback attempt and must see the first failure.
//
// # Usage
//
//	orch, err := orchestrator.New(models, providers,
//	    orchestrator.WithMiddleware(
//	        middleware.NewObservabilityMiddleware(observer),
//	        middleware.NewTimeoutMiddleware(2*time.Minute),
//	        middleware.NewLoggingMiddleware(logger, middleware.LogLevelStandard),
//	    ),
//	)
//
// Middlewares execute outermost-first: a request travels
//
//	Observability → Timeout → Logging → Provider
//
// and stream events travel back in reverse.
package middleware
