// Package codec serializes vault and item plaintext into a versioned binary
// format before encryption and parses it back afterwards.
//
// The encoding is protobuf wire format written by hand with protowire,
// prefixed by a one-byte FormatVersion. It is deterministic: known fields are
// written in ascending field number, repeated fields in slice order, and zero
// values are omitted, so equal values always produce equal bytes.
//
// # Compatibility
//
// Unknown fields are kept verbatim on read and written back after the known
// fields of the same message. A content case this version does not know is
// kept the same way and decodes to a nil Content. Input with a different
// FormatVersion fails with ErrUnsupportedFormat.
package codec
