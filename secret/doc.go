// Package secret provides a small, dependency-light secret resolution layer.
//
// It supports:
//   - Strict environment expansion (see ExpandEnvStrict)
//   - Pluggable secret providers (see Provider + Registry)
//   - Resolving secret references in configuration values (see Resolver)
//
// References use the prefix "secretref:":
//   - Full value:  secretref:bws:project/dotenv/key/BASEROW_API_TOKEN
//   - Inline use:  Bearer secretref:bws:project/dotenv/key/BASEROW_API_TOKEN
package secret
