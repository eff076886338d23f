// Package testutil contains helper builders used across tests to reduce
// boilerplate when seeding snapshot directories, hook payloads and fake
// provider endpoints. They are not intended for production usage.
package testutil
