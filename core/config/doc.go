// Package config loads the process-wide settings of chatrelay: provider
// credentials, the fallback model, the prompt budget and timeouts.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables. The result is read-only after startup and is handed
// explicitly to the components that need it.
package config
