// Package uniuri generates cryptographically secure random strings suitable
// for use as unique identifiers, OAuth nonces and WIMS request codes.
// It provides functions to create random strings with configurable length and character sets.
package uniuri
