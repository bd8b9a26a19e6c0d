// Package partstore is a type-indexed store of heterogeneous parts with a
// two-phase application lifecycle on top.
//
// Parts are inserted into a Store during assembly and retrieved by type.
// An Application owns a Store and starts its parts in insertion order,
// stopping the ones already started in reverse order if any fails.
package partstore
