package audit

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/PolarWolf314/vaultkey/internal/configs"
)

// Operation names.
const (
	OpCreateVault   = "create_vault"
	OpRotateVault   = "rotate_vault"
	OpCreateItem    = "create_item"
	OpUpdateItem    = "update_item"
	OpInviteEncrypt = "invite_encrypt"
	OpInviteAccept  = "invite_accept"
	OpSecurityEvent = "security_event"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp string `json:"ts"`   // RFC3339 with microseconds.
	User      string `json:"user"` // Email of user performing action.
	UserUUID  string `json:"uuid"`
	Operation string `json:"op"`

	ShareID    string `json:"share_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	Rotation   *int64 `json:"rotation,omitempty"`
	Revision   int64  `json:"revision,omitempty"`    // For update_item.
	KeysCount  int    `json:"keys_count,omitempty"`  // For invite_*.
	TargetUser string `json:"target_user,omitempty"` // For invite_encrypt.
	Inviter    string `json:"inviter,omitempty"`     // For invite_accept.
	Reason     string `json:"reason,omitempty"`      // For security_event.
}

// WithRotation sets the rotation of e.
func (e Entry) WithRotation(r int64) Entry {
	e.Rotation = &r
	return e
}

var mu sync.Mutex

// Log appends an entry to the audit log.
// If logging fails it returns silently; operations should not fail just
// because audit logging failed.
func Log(entry Entry) {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
	}

	logPath := LogPath()
	if logPath == "" {
		// Workspace not initialized, skip logging.
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = f.Write(append(data, '\n'))
}

// LogWithUser returns an entry for op with the user fields populated from config.
func LogWithUser(op string) Entry {
	entry := Entry{Operation: op}

	userConfig, err := configs.LoadUserConfig()
	if err != nil {
		return entry
	}

	entry.User = userConfig.User.Email
	entry.UserUUID = userConfig.User.UUID

	return entry
}

// SecurityEvent records content that failed signature verification or an
// invite that could not be accepted.
func SecurityEvent(shareID, itemID string, cause error) {
	entry := LogWithUser(OpSecurityEvent)
	entry.ShareID = shareID
	entry.ItemID = itemID
	if cause != nil {
		entry.Reason = cause.Error()
	}
	Log(entry)
}

// LogPath returns the path to the audit log file.
// Returns empty string if the workspace is not initialized.
func LogPath() string {
	s := configs.WorkspaceVaultkeySettings
	if s == nil || s.WorkspacePath == "" {
		return ""
	}
	return s.AuditPath
}

// ReadEntries reads all entries from the audit log.
// Returns an empty slice if the log doesn't exist.
func ReadEntries() ([]Entry, error) {
	logPath := LogPath()
	if logPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// Filter returns the entries of op.
func Filter(entries []Entry, op string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Operation == op {
			out = append(out, e)
		}
	}
	return out
}
