// Package auth provides authentication primitives for the gateway's
// mutation and revalidation endpoints.
//
// It supports shared-secret bearer tokens and JWT validation, composed
// through a CompositeAuthenticator that tries each method in order. The
// package is protocol-agnostic and can be used with any transport layer.
package auth
