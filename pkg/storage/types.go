package storage

// TimedGroup is a group membership with an optional activation delay and an expiry.
// Both times are absolute epoch seconds; a zero DelayUntilTime means no delay.
type TimedGroup struct {
	GroupName      string `json:"group"`
	DelayUntilTime int64  `json:"delay_until"`
	ExpireAtTime   int64  `json:"expire_at"`
}

// IsExpired reports whether the membership has ended at now
func (t TimedGroup) IsExpired(now int64) bool {
	return t.ExpireAtTime <= now
}

// IsPending reports whether the membership is registered but not yet active
func (t TimedGroup) IsPending(now int64) bool {
	return !t.IsExpired(now) && t.DelayUntilTime > 0 && t.DelayUntilTime > now
}

// IsActive reports whether the membership currently grants its group
func (t TimedGroup) IsActive(now int64) bool {
	return !t.IsExpired(now) && !t.IsPending(now)
}

// CachedPermission is a hydrated snapshot of one subject (player or tribe)
type CachedPermission struct {
	Groups              []string
	TimedGroups         []TimedGroup
	CallbackGroups      []string
	HasCheckedCallbacks bool
}

// ActiveGroups returns the static groups followed by the timed groups active at now,
// without duplicates and in first-seen order
func (c *CachedPermission) ActiveGroups(now int64) []string {
	if c == nil {
		return nil
	}
	groups := make([]string, 0, len(c.Groups)+len(c.TimedGroups))
	groups = AppendUnique(groups, c.Groups...)
	for _, tg := range c.TimedGroups {
		if tg.IsActive(now) {
			groups = AppendUnique(groups, tg.GroupName)
		}
	}
	return groups
}

// AppendUnique appends every value not already present in dst, preserving order
func AppendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

// Contains reports whether values holds v (case-sensitive)
func Contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}

// Remove returns values without any element equal to v
func Remove(values []string, v string) []string {
	out := values[:0:0]
	for _, existing := range values {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}
