// Package errors provides the structured errors printed by the wolfnet
// command.
//
// Each code (e.g., "W200") maps to a category, a short message and an
// optional explanation and hint:
//
//	return errors.New("W200").Wrap(err)
//
// Codes are grouped by range:
//   - W100-W199: configuration
//   - W200-W299: sockets and HTTP
//   - W300-W399: demo recording, reading and archiving
//   - W400-W499: command line usage
package errors
