//go:build !windows

package detect

// Only Windows keeps the browser version in the registry.
var platformRegistryReader RegistryReader
