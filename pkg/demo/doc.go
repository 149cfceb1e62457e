// Package demo records and replays the stream of server messages sent to
// one client.
//
// A demo is the sequence of logical messages exactly as the client would
// have received them, starting with a gamestate and a full snapshot, so a
// client.Parser can decode it offline. Finished demos are archived through
// a Store: DiskStore for a local directory, S3Store for a bucket.
package demo
