// Package protocol owns the legacy APNS binary wire contract.
//
// Ownership boundary:
// - aps payload construction and the 256-byte cap
// - push frame encoding (simple notification format, command 0)
// - feedback record decoding
package protocol
