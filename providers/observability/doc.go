// Package observability defines the tracing and structured-logging interfaces
// used by the provider clients and the orchestrator, together with the
// attribute-key conventions shared by all of them.
//
// The central entry point is [Provider], which composes [Tracer] and [Logger]
// into a single injectable dependency. An active [Provider] and [Span] travel
// through a [context.Context] via [ContextWithObserver] and [ContextWithSpan]
// and are retrieved with [ObserverFromContext] and [SpanFromContext]. Both
// accessors return nil when nothing is attached, so call sites guard with a
// nil check and pay nothing when observability is disabled.
package observability
