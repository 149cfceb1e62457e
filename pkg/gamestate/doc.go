// Package gamestate defines the records the server replicates to clients
// (EntityState and PlayerState) and the input record clients send back
// (UserCmd), together with their delta encodings.
//
// Each record type has a field table built from typed accessors. Tables
// are ordered by priority so that frequently changing fields come first;
// the encoder stops after the last changed field. Priorities can be
// overridden with NewTables, as long as both ends use the same values.
//
// An entity delta on the wire:
//
//	[10] entity number
//	[1]  removed (1 = entity left the snapshot, nothing follows)
//	[1]  changed (0 = identical to the reference)
//	[8]  number of fields covered
//	per covered field: [1] changed, then the value when set
package gamestate
