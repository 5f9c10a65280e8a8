package keys

import (
	"fmt"
	"sync"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
)

// Keyring holds the rotation set of every share the user can open. A set is
// replaced as a whole, so a reader sees either the previous set or the new
// one and never an item rotation without its key.
type Keyring struct {
	mu   sync.RWMutex
	sets map[string]*RotationSet
}

func NewKeyring() *Keyring {
	return &Keyring{sets: make(map[string]*RotationSet)}
}

// Apply installs set as the keys of its share. It is rejected when the new
// current rotation is lower than the applied one, or when any rotation in
// referenced (rotations still used by stored content) has no key in set.
func (r *Keyring) Apply(set *RotationSet, referenced ...int64) error {
	if set == nil || set.Len() == 0 {
		return fmt.Errorf("%w: empty rotation set", kerrors.ErrNoUsableKey)
	}
	for _, rot := range referenced {
		if _, err := set.ForRotation(rot); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyLocked(set)
}

func (r *Keyring) applyLocked(set *RotationSet) error {
	next, _ := set.Current()
	if prev, ok := r.sets[set.ShareID()]; ok {
		applied, _ := prev.Current()
		if next.Rotation < applied.Rotation {
			return fmt.Errorf("%w: share %s at rotation %d, got %d",
				kerrors.ErrRotationRegression, set.ShareID(), applied.Rotation, next.Rotation)
		}
	}
	r.sets[set.ShareID()] = set
	return nil
}

// Add applies the current set of k's share with k added.
func (r *Keyring) Add(k ShareKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		set *RotationSet
		err error
	)
	if prev, ok := r.sets[k.ShareID]; ok {
		set, err = prev.With(k)
	} else {
		set, err = NewRotationSet(k)
	}
	if err != nil {
		return err
	}
	return r.applyLocked(set)
}

// Remove drops a share, e.g. after the user lost access to it.
func (r *Keyring) Remove(shareID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sets, shareID)
}

// Set returns the applied set of shareID.
func (r *Keyring) Set(shareID string) (*RotationSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sets[shareID]
	if !ok {
		return nil, fmt.Errorf("%w: no keys for share %s", kerrors.ErrNoUsableKey, shareID)
	}
	return set, nil
}

// Current returns the current key of shareID.
func (r *Keyring) Current(shareID string) (ShareKey, error) {
	set, err := r.Set(shareID)
	if err != nil {
		return ShareKey{}, err
	}
	return set.Current()
}

// ForRotation returns the key of shareID for rotation.
func (r *Keyring) ForRotation(shareID string, rotation int64) (ShareKey, error) {
	set, err := r.Set(shareID)
	if err != nil {
		return ShareKey{}, err
	}
	return set.ForRotation(rotation)
}
