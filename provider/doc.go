// Package provider defines the backend adapter contract for the content
// gateway and the error taxonomy shared by every adapter.
//
// An Adapter is a pure translator between the uniform query model in
// package content and one backend's native protocol. Adapters are
// stateless with respect to caching and never retry or suppress
// failures; timeouts, retries and circuit breaking belong to the
// resilience layer.
//
// Concrete adapters live in subpackages, one per backend family:
// baserow (tabular REST service), sheets (spreadsheet values API),
// dynamo (DynamoDB document store), and postgres (relational store).
package provider
