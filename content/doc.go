// Package content defines the uniform content model shared by every
// gateway component: records, result pages, and the query shape used to
// address backend providers and to derive cache keys.
package content
