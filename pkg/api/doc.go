// Package api defines the request and response messages of the contri RPC
// services. Messages are exchanged as JSON. Money is always a decimal string
// with at most two fractional digits ("12.50"); identifiers are opaque strings.
//
// Struct tags drive request validation (go-playground/validator).
package api
