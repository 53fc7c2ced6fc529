// Package catalog maps the public model ids offered to users onto a provider
// kind and the provider-native model name.
//
// The catalog is the single source of truth for which models exist. It is
// immutable after construction and safe for concurrent use. Resolution is an
// exact lookup: unknown or retired ids fail with ErrUnknownModel instead of
// being guessed from their spelling.
package catalog
