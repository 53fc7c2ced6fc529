// Package utils provides the low-level HTTP plumbing shared by the provider
// clients: JSON POST helpers for one-shot calls ([DoPostSync]), streaming POSTs
// guarded by a first-byte timeout ([DoPostStream]) read through an
// [SSEScanner], structured decoding of provider error bodies ([NewHTTPError])
// and small string/pointer helpers.
package utils
