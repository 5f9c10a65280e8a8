// Package audit records vault and invite operations in a workspace-level
// audit log.
//
// # Log Format
//
// The audit log is stored as JSON Lines (one JSON object per line) at:
//
//	.vaultkey/audit.jsonl
//
// Each entry contains a UTC timestamp, the user's email and UUID, the
// operation name and operation-specific details (share and item ids,
// rotation, revision, invite key counts).
//
// Signature verification failures and rejected invites are recorded as
// security_event entries with the failure reason.
//
// # Usage
//
//	entry := audit.LogWithUser(audit.OpCreateVault)
//	entry.ShareID = shareID
//	audit.Log(entry.WithRotation(0))
//
// # Failure Handling
//
// Audit logging is best-effort. If logging fails the operation continues
// without error.
package audit
