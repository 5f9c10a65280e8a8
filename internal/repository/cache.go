package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/utils"
)

// Cache is the local copy of item records, as last accepted by the remote.
// Records stay encrypted; one JSON file per item.
type Cache struct {
	Dir string
}

func NewCache(dir string) *Cache {
	return &Cache{Dir: dir}
}

func (c *Cache) path(shareID, itemID string) (string, error) {
	if !filepath.IsLocal(shareID) || !filepath.IsLocal(itemID) ||
		filepath.Base(shareID) != shareID || filepath.Base(itemID) != itemID {
		return "", fmt.Errorf("%w: bad cache key %q/%q", kerrors.ErrInvalidRequest, shareID, itemID)
	}
	return filepath.Join(c.Dir, "items", shareID, itemID+".json"), nil
}

// Get returns the cached record, or ErrItemNotFound.
func (c *Cache) Get(shareID, itemID string) (Item, error) {
	p, err := c.path(shareID, itemID)
	if err != nil {
		return Item{}, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return Item{}, fmt.Errorf("%w: %s not cached", kerrors.ErrItemNotFound, itemID)
	}
	if err != nil {
		return Item{}, fmt.Errorf("reading cached item %s: %w", itemID, err)
	}

	var it Item
	if err := json.Unmarshal(data, &it); err != nil {
		return Item{}, fmt.Errorf("%w: cached item %s: %v", kerrors.ErrMalformedContent, itemID, err)
	}
	return it, nil
}

// Put replaces the cached record of it.
func (c *Cache) Put(it Item) error {
	p, err := c.path(it.ShareID, it.ItemID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(it, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding item %s: %w", it.ItemID, err)
	}
	return utils.WriteFileAtomic(p, data, 0600)
}
