package keys

import (
	"fmt"
	"slices"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
)

// CurrentRotation returns the highest rotation, or false when there is none.
func CurrentRotation(rotations []int64) (int64, bool) {
	if len(rotations) == 0 {
		return 0, false
	}
	return slices.Max(rotations), true
}

// RotationSet is the set of keys of one share, indexed by rotation. It is
// immutable once built.
type RotationSet struct {
	shareID   string
	keys      map[int64]ShareKey
	rotations []int64
}

// NewRotationSet indexes keys by rotation. All keys must belong to the same
// share and rotations must be unique.
func NewRotationSet(keys ...ShareKey) (*RotationSet, error) {
	s := &RotationSet{keys: make(map[int64]ShareKey, len(keys))}
	for _, k := range keys {
		if k.Rotation < 0 {
			return nil, fmt.Errorf("share %s: negative rotation %d", k.ShareID, k.Rotation)
		}
		if s.shareID == "" {
			s.shareID = k.ShareID
		} else if k.ShareID != s.shareID {
			return nil, fmt.Errorf("rotation set mixes shares %s and %s", s.shareID, k.ShareID)
		}
		if _, exists := s.keys[k.Rotation]; exists {
			return nil, fmt.Errorf("share %s: duplicate rotation %d", k.ShareID, k.Rotation)
		}
		s.keys[k.Rotation] = k
		s.rotations = append(s.rotations, k.Rotation)
	}
	slices.Sort(s.rotations)
	return s, nil
}

func (s *RotationSet) ShareID() string { return s.shareID }

func (s *RotationSet) Len() int { return len(s.rotations) }

// Rotations returns the rotations in ascending order.
func (s *RotationSet) Rotations() []int64 {
	return slices.Clone(s.rotations)
}

// Current returns the key with the highest rotation.
func (s *RotationSet) Current() (ShareKey, error) {
	r, ok := CurrentRotation(s.rotations)
	if !ok {
		return ShareKey{}, fmt.Errorf("%w: share %s has no keys", kerrors.ErrNoUsableKey, s.shareID)
	}
	return s.keys[r], nil
}

// ForRotation returns the key of rotation r.
func (s *RotationSet) ForRotation(r int64) (ShareKey, error) {
	k, ok := s.keys[r]
	if !ok {
		return ShareKey{}, fmt.Errorf("%w: share %s rotation %d", kerrors.ErrNoUsableKey, s.shareID, r)
	}
	return k, nil
}

// With returns a new set with k added.
func (s *RotationSet) With(k ShareKey) (*RotationSet, error) {
	all := make([]ShareKey, 0, len(s.keys)+1)
	for _, r := range s.rotations {
		all = append(all, s.keys[r])
	}
	return NewRotationSet(append(all, k)...)
}
