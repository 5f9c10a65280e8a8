// Package requests builds the encrypted, signed payloads exchanged with the
// server and opens the ones it returns.
//
// Every content payload is encrypted with a session key under a tagged
// encryption context and carries two detached signatures over the
// ciphertext: one by the key owning the content (vault key or item key) and
// one by the acting user's address key. The session key travels as a key
// packet wrapped to the vault key of the content's rotation.
//
// Opening always verifies the signature chain before decrypting. Invite keys
// are re-encrypted directly from inviter to invitee so the relaying server
// never sees plaintext key material; accepting an invite is all or nothing.
//
// Builders perform no I/O and never retry. A stale LastRevision is detected
// by the server; refetch and retry belong to the repository.
package requests
