package workflows

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PolarWolf314/vaultkey/internal/audit"
	"github.com/PolarWolf314/vaultkey/internal/codec"
	"github.com/PolarWolf314/vaultkey/internal/configs"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
)

// setupWorkspace changes into a fresh directory and keeps the key
// derivation cheap.
func setupWorkspace(t *testing.T) string {
	t.Helper()

	originalWd, err := os.Getwd()
	require.NoError(t, err)
	originalUser := configs.UserVaultkeySettings

	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(originalWd))
		configs.UserVaultkeySettings = originalUser
		configs.WorkspaceVaultkeySettings = &configs.WorkspaceSettings{}
	})

	t.Setenv(configs.EnvKDFTime, "1")
	t.Setenv(configs.EnvKDFMemory, "1024")
	return dir
}

// asUser points the user settings at a per-user home under the test's
// temporary directory.
func asUser(t *testing.T, name string) {
	t.Helper()
	home := filepath.Join(os.TempDir(), t.Name(), name)
	t.Cleanup(func() { os.RemoveAll(filepath.Join(os.TempDir(), t.Name())) })
	configs.UserVaultkeySettings = &configs.UserSettings{
		UserKeysPath:    filepath.Join(home, "keys"),
		UserConfigsPath: filepath.Join(home, "config"),
		Username:        name,
	}
}

func passphrase(name string) SessionOptions {
	return SessionOptions{Passphrase: []byte("correct horse " + name)}
}

// newUser generates keys for name and returns its address id.
func newUser(t *testing.T, name string) string {
	t.Helper()
	asUser(t, name)
	res, err := KeysGenerate(context.Background(), KeysGenerateOptions{
		Email:      name + "@example.com",
		Passphrase: passphrase(name).Passphrase,
	})
	require.NoError(t, err)
	return res.AddressID
}

func TestInit(t *testing.T) {
	dir := setupWorkspace(t)
	asUser(t, "alice")
	ctx := context.Background()

	res, err := Init(ctx, InitOptions{WorkspaceName: "household"})
	require.NoError(t, err)
	assert.Equal(t, "household", res.WorkspaceName)
	assert.False(t, res.AddressPublished)
	assert.Len(t, res.CreatedPaths, 2)
	assert.DirExists(t, filepath.Join(dir, ".vaultkey", "remote"))
	assert.FileExists(t, filepath.Join(dir, ".vaultkey", "config.toml"))

	_, err = Init(ctx, InitOptions{})
	assert.ErrorIs(t, err, kerrors.ErrWorkspaceAlreadyInitialized)
}

func TestInitPublishesExistingKey(t *testing.T) {
	setupWorkspace(t)
	newUser(t, "alice")

	res, err := Init(context.Background(), InitOptions{})
	require.NoError(t, err)
	assert.True(t, res.AddressPublished)
}

func TestKeysGenerate(t *testing.T) {
	setupWorkspace(t)
	ctx := context.Background()
	asUser(t, "alice")

	_, err := KeysGenerate(ctx, KeysGenerateOptions{Email: "not-an-email", Passphrase: []byte("x")})
	assert.ErrorIs(t, err, kerrors.ErrInvalidRequest)

	_, err = Init(ctx, InitOptions{})
	require.NoError(t, err)

	res, err := KeysGenerate(ctx, KeysGenerateOptions{Email: "alice@example.com", Passphrase: []byte("x")})
	require.NoError(t, err)
	assert.True(t, res.Published)
	assert.DirExists(t, res.KeyDir)

	user, err := configs.LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, res.AddressID, user.User.AddressID)

	_, err = KeysGenerate(ctx, KeysGenerateOptions{Email: "alice@example.com", Passphrase: []byte("x")})
	assert.ErrorIs(t, err, kerrors.ErrKeyExists)
}

func TestSessionRequirements(t *testing.T) {
	setupWorkspace(t)
	ctx := context.Background()
	asUser(t, "alice")

	_, err := VaultCreate(ctx, VaultCreateOptions{SessionOptions: passphrase("alice"), Name: "Finance"})
	assert.ErrorIs(t, err, kerrors.ErrWorkspaceNotInitialized)

	_, err = Init(ctx, InitOptions{})
	require.NoError(t, err)

	_, err = VaultCreate(ctx, VaultCreateOptions{SessionOptions: passphrase("alice"), Name: "Finance"})
	assert.ErrorIs(t, err, kerrors.ErrUserNotConfigured)

	newUser(t, "alice")
	_, err = VaultCreate(ctx, VaultCreateOptions{SessionOptions: passphrase("mallory"), Name: "Finance"})
	assert.ErrorIs(t, err, kerrors.ErrKeyUnlock)
	assert.Equal(t, kerrors.KindRetry, kerrors.Classify(err))

	_, err = VaultCreate(ctx, VaultCreateOptions{SessionOptions: passphrase("alice")})
	assert.ErrorIs(t, err, kerrors.ErrInvalidRequest)
}

func TestVaultAndItemLifecycle(t *testing.T) {
	setupWorkspace(t)
	ctx := context.Background()
	alice := newUser(t, "alice")
	_, err := Init(ctx, InitOptions{})
	require.NoError(t, err)
	opts := passphrase("alice")

	vault, err := VaultCreate(ctx, VaultCreateOptions{SessionOptions: opts, Name: "Finance", Color: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(0), vault.Rotation)

	created, err := ItemCreate(ctx, ItemCreateOptions{
		SessionOptions: opts,
		Vault:          "Finance",
		ItemFields:     ItemFields{Name: "Bills", Username: "alice", Password: "hunter2", URLs: []string{"https://bank.example"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Revision)
	assert.Equal(t, vault.ShareID, created.ShareID)

	opened, err := ItemOpen(ctx, ItemOpenOptions{SessionOptions: opts, Vault: "Finance", ItemID: created.ItemID})
	require.NoError(t, err)
	assert.Equal(t, "Bills", opened.Contents.Metadata.Name)
	assert.Equal(t, alice, opened.Signer)
	login, ok := opened.Contents.Content.(codec.Login)
	require.True(t, ok)
	assert.Equal(t, "hunter2", login.Password)

	password := "correct-battery"
	updated, err := ItemUpdate(ctx, ItemUpdateOptions{
		SessionOptions: opts,
		Vault:          vault.ShareID,
		ItemID:         created.ItemID,
		ItemChanges:    ItemChanges{Password: &password},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Revision)
	assert.Equal(t, "alice", updated.Contents.Content.(codec.Login).Username)

	listing, err := VaultOpen(ctx, VaultOpenOptions{SessionOptions: opts, Vault: "Finance"})
	require.NoError(t, err)
	assert.Equal(t, "Finance", listing.Metadata.Name)
	require.NotNil(t, listing.Metadata.Display)
	assert.Equal(t, int32(3), listing.Metadata.Display.Color)
	require.Len(t, listing.Items, 1)
	assert.Equal(t, "Bills", listing.Items[0].Name)
	assert.Equal(t, "login", listing.Items[0].Type)
	assert.NoError(t, listing.Items[0].Err)

	log, err := Log(ctx, LogOptions{})
	require.NoError(t, err)
	ops := make([]string, 0, len(log.Entries))
	for _, e := range log.Entries {
		ops = append(ops, e.Operation)
	}
	assert.Equal(t, []string{audit.OpCreateVault, audit.OpCreateItem, audit.OpUpdateItem}, ops)
}

func TestItemUpdateRequiresChanges(t *testing.T) {
	_, err := ItemUpdate(context.Background(), ItemUpdateOptions{ItemID: "x"})
	assert.ErrorIs(t, err, kerrors.ErrInvalidRequest)
}

func TestItemChangesApply(t *testing.T) {
	name := "Groceries"
	user := "bob"

	note := codec.ItemContents{Metadata: codec.ItemMetadata{Name: "Bills", Note: "paid"}, Content: codec.Note{}}
	got, err := ItemChanges{Name: &name}.apply(note)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Metadata.Name)
	assert.Equal(t, "paid", got.Metadata.Note)
	assert.IsType(t, codec.Note{}, got.Content)

	got, err = ItemChanges{Username: &user}.apply(note)
	require.NoError(t, err)
	assert.Equal(t, codec.Login{Username: "bob"}, got.Content)

	alias := codec.ItemContents{Content: codec.Alias{}}
	_, err = ItemChanges{Username: &user}.apply(alias)
	assert.ErrorIs(t, err, kerrors.ErrInvalidRequest)
}

func TestInviteFlow(t *testing.T) {
	setupWorkspace(t)
	ctx := context.Background()

	alice := newUser(t, "alice")
	_, err := Init(ctx, InitOptions{})
	require.NoError(t, err)
	bob := newUser(t, "bob")

	asUser(t, "alice")
	vault, err := VaultCreate(ctx, VaultCreateOptions{SessionOptions: passphrase("alice"), Name: "Finance"})
	require.NoError(t, err)
	item, err := ItemCreate(ctx, ItemCreateOptions{SessionOptions: passphrase("alice"), Vault: "Finance", ItemFields: ItemFields{Name: "Bills", Note: "due on the 1st"}})
	require.NoError(t, err)
	rotated, err := VaultRotate(ctx, VaultRotateOptions{SessionOptions: passphrase("alice"), Vault: "Finance"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rotated.Rotation)
	assert.Equal(t, 1, rotated.Items)

	invite, err := InviteEncrypt(ctx, InviteEncryptOptions{SessionOptions: passphrase("alice"), Vault: "Finance", Target: bob})
	require.NoError(t, err)
	assert.Equal(t, 2, invite.Keys)

	asUser(t, "bob")
	_, err = ItemOpen(ctx, ItemOpenOptions{SessionOptions: passphrase("bob"), Vault: vault.ShareID, ItemID: item.ItemID})
	assert.ErrorIs(t, err, kerrors.ErrNoUsableKey)

	accepted, err := InviteAccept(ctx, InviteAcceptOptions{SessionOptions: passphrase("bob"), InviteID: invite.InviteID})
	require.NoError(t, err)
	assert.Equal(t, "Finance", accepted.Name)
	assert.Equal(t, alice, accepted.Inviter)

	note := "paid"
	updated, err := ItemUpdate(ctx, ItemUpdateOptions{SessionOptions: passphrase("bob"), Vault: "Finance", ItemID: item.ItemID, ItemChanges: ItemChanges{Note: &note}})
	require.NoError(t, err)
	assert.Equal(t, bob, updated.Signer)

	asUser(t, "alice")
	opened, err := ItemOpen(ctx, ItemOpenOptions{SessionOptions: passphrase("alice"), Vault: "Finance", ItemID: item.ItemID})
	require.NoError(t, err)
	assert.Equal(t, "paid", opened.Contents.Metadata.Note)
	assert.Equal(t, bob, opened.Signer)

	_, err = VaultRotate(ctx, VaultRotateOptions{SessionOptions: passphrase("alice"), Vault: "Finance"})
	require.NoError(t, err)

	asUser(t, "bob")
	_, err = VaultOpen(ctx, VaultOpenOptions{SessionOptions: passphrase("bob"), Vault: "Finance"})
	assert.ErrorIs(t, err, kerrors.ErrNoUsableKey)

	accepts, err := Log(ctx, LogOptions{Operations: "invite_encrypt, invite_accept"})
	require.NoError(t, err)
	require.Len(t, accepts.Entries, 2)
	assert.Equal(t, audit.OpInviteEncrypt, accepts.Entries[0].Operation)
	assert.Equal(t, audit.OpInviteAccept, accepts.Entries[1].Operation)
}

func TestInviteAcceptOnlyByTarget(t *testing.T) {
	setupWorkspace(t)
	ctx := context.Background()

	newUser(t, "alice")
	_, err := Init(ctx, InitOptions{})
	require.NoError(t, err)
	bob := newUser(t, "bob")
	newUser(t, "carol")

	asUser(t, "alice")
	_, err = VaultCreate(ctx, VaultCreateOptions{SessionOptions: passphrase("alice"), Name: "Finance"})
	require.NoError(t, err)
	invite, err := InviteEncrypt(ctx, InviteEncryptOptions{SessionOptions: passphrase("alice"), Vault: "Finance", Target: bob})
	require.NoError(t, err)

	asUser(t, "carol")
	_, err = InviteAccept(ctx, InviteAcceptOptions{SessionOptions: passphrase("carol"), InviteID: invite.InviteID})
	assert.ErrorIs(t, err, kerrors.ErrInviteNotFound)
}

func TestLog(t *testing.T) {
	setupWorkspace(t)
	ctx := context.Background()

	_, err := Log(ctx, LogOptions{})
	assert.ErrorIs(t, err, kerrors.ErrWorkspaceNotInitialized)

	asUser(t, "alice")
	_, err = Init(ctx, InitOptions{})
	require.NoError(t, err)

	empty, err := Log(ctx, LogOptions{})
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)

	for _, e := range []audit.Entry{
		{Timestamp: "2026-01-01T10:00:00.000000Z", User: "alice@example.com", Operation: audit.OpCreateVault, ShareID: "s1"},
		{Timestamp: "2026-01-02T10:00:00.000000Z", User: "bob@example.com", Operation: audit.OpCreateItem, ShareID: "s1"},
		{Timestamp: "2026-01-03T10:00:00.000000Z", User: "alice@example.com", Operation: audit.OpCreateItem, ShareID: "s2"},
	} {
		audit.Log(e)
	}

	tests := []struct {
		name string
		opts LogOptions
		want []string
	}{
		{"all", LogOptions{}, []string{"s1", "s1", "s2"}},
		{"user", LogOptions{User: "ALICE@example.com"}, []string{"s1", "s2"}},
		{"vault", LogOptions{Vault: "s1"}, []string{"s1", "s1"}},
		{"operation", LogOptions{Operations: "create_item"}, []string{"s1", "s2"}},
		{"since", LogOptions{Since: "2026-01-02"}, []string{"s1", "s2"}},
		{"until", LogOptions{Until: "2026-01-02"}, []string{"s1", "s1"}},
		{"limit", LogOptions{Limit: 1}, []string{"s2"}},
		{"reverse limit", LogOptions{Reverse: true, Limit: 2}, []string{"s2", "s1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Log(ctx, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, 3, res.Total)
			got := make([]string, 0, len(res.Entries))
			for _, e := range res.Entries {
				got = append(got, e.ShareID)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = Log(ctx, LogOptions{Since: "yesterday"})
	assert.ErrorIs(t, err, kerrors.ErrInvalidRequest)
}

func TestFormatDetails(t *testing.T) {
	e := audit.Entry{Operation: audit.OpUpdateItem, ItemID: "i1", Revision: 6}.WithRotation(1)
	assert.Equal(t, "item i1, rotation 1, revision 6", FormatDetails(e))
	assert.Equal(t, "2026-01-02 10:00:00", FormatDateTime("2026-01-02T10:00:00.000000Z"))
}
