// Package provider defines the adapter contract that lets identical booking
// logic drive incompatible calendar backends, and the registry that maps a
// connection's declared provider kind to the adapter serving it.
//
// Concrete adapters live in the googlecal and msgraph subpackages.
package provider
