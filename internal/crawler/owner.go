package crawler

import (
	"fmt"
	"io/fs"
	"os/user"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ownerCacheSize bounds the uid to username cache. A tree usually has few owners.
const ownerCacheSize = 256

// OwnerLookup resolves the owning user of a file. ok is false when the owner
// cannot be determined.
type OwnerLookup interface {
	Owner(info fs.FileInfo) (name string, ok bool)
}

// ownerEntry caches failed lookups too, so an unknown uid is resolved once.
type ownerEntry struct {
	name string
	ok   bool
}

// SystemOwner resolves owners from the file's uid through the OS user database.
type SystemOwner struct {
	cache  *lru.Cache[uint32, ownerEntry]
	lookup func(uid string) (*user.User, error)
}

// NewSystemOwner creates an owner lookup with a bounded cache.
func NewSystemOwner() (*SystemOwner, error) {
	cache, err := lru.New[uint32, ownerEntry](ownerCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create owner cache: %w", err)
	}
	return &SystemOwner{cache: cache, lookup: user.LookupId}, nil
}

// Owner returns the username owning info. Uids unknown to the user database
// and platforms without uids report no owner.
func (o *SystemOwner) Owner(info fs.FileInfo) (string, bool) {
	uid, ok := fileUID(info)
	if !ok {
		return "", false
	}
	if e, hit := o.cache.Get(uid); hit {
		return e.name, e.ok
	}

	var e ownerEntry
	if u, err := o.lookup(strconv.FormatUint(uint64(uid), 10)); err == nil && u.Username != "" {
		e = ownerEntry{name: u.Username, ok: true}
	}
	o.cache.Add(uid, e)
	return e.name, e.ok
}
