// Package repository is the data layer between the request builders and the
// server.
//
// Remote is the server protocol. StoreRemote implements it on a JSON state
// kept in memory (NewMemoryRemote) or in a workspace file (NewFileRemote).
// Updates are compare-and-swap on the item revision.
//
// Repository is one address's session. It keeps a keys.Keyring of the
// shares it has opened, a Cache of the item records the remote accepted,
// and optionally a ShareKeyCache pinning the share keys it created. A
// rejected request never touches the local caches.
package repository
