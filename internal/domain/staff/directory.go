package staff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// Directory answers staff lookups for the leave engine and the auth
// middleware. Hits are cached for ttl; misses are not cached so that a newly
// created staff member is visible immediately.
type Directory struct {
	source Source
	cache  *cache.Cache
}

func NewDirectory(source Source, ttl time.Duration) *Directory {
	d := &Directory{source: source}
	if ttl > 0 {
		d.cache = cache.New(ttl, 2*ttl)
	}
	return d
}

func (d *Directory) GetStaffMember(ctx context.Context, tenantID string, id int64) (StaffMember, error) {
	key := fmt.Sprintf("member:%s:%d", tenantID, id)
	if d.cache != nil {
		if cached, ok := d.cache.Get(key); ok {
			return cached.(StaffMember), nil
		}
	}
	m, err := d.source.GetStaffMember(ctx, tenantID, id)
	if err != nil {
		return StaffMember{}, err
	}
	if d.cache != nil {
		d.cache.SetDefault(key, m)
	}
	return m, nil
}

// ResolveStaffID maps an authenticated user onto their staff record. ok is
// false when the user has none.
func (d *Directory) ResolveStaffID(ctx context.Context, tenantID, userID string) (int64, bool, error) {
	key := fmt.Sprintf("user:%s:%s", tenantID, userID)
	if d.cache != nil {
		if cached, ok := d.cache.Get(key); ok {
			return cached.(int64), true, nil
		}
	}
	id, err := d.source.StaffIDByUserID(ctx, tenantID, userID)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if d.cache != nil {
		d.cache.SetDefault(key, id)
	}
	return id, true, nil
}

func (d *Directory) Create(ctx context.Context, m StaffMember) (StaffMember, error) {
	return d.source.CreateStaffMember(ctx, m)
}

// Invalidate drops any cached entry for the staff member.
func (d *Directory) Invalidate(tenantID string, id int64) {
	if d.cache != nil {
		d.cache.Delete(fmt.Sprintf("member:%s:%d", tenantID, id))
	}
}
