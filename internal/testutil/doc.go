// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing agent specs, catalogs and scripted
// completion services. Not intended for production usage.
package testutil
