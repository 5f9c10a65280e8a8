// Package signature implements the two-signature chain over encrypted
// content: one by the key owning the content and one by the acting user's
// address key. Verification fails closed.
package signature
