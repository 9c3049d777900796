package usecase

import "sort"

// AdminPolicy decides who may call admin-only operations.
type AdminPolicy interface {
	IsAdmin(userID int64) bool
}

var _ AdminPolicy = (*AllowList)(nil)

// AllowList is an AdminPolicy backed by configured Telegram user ids.
type AllowList struct {
	ids map[int64]struct{}
}

func NewAllowList(ids []int64) *AllowList {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id > 0 {
			m[id] = struct{}{}
		}
	}
	return &AllowList{ids: m}
}

func (a *AllowList) IsAdmin(userID int64) bool {
	if a == nil {
		return false
	}
	_, ok := a.ids[userID]
	return ok
}

func (a *AllowList) IDs() []int64 {
	out := make([]int64, 0, len(a.ids))
	for id := range a.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func isAdmin(p AdminPolicy, userID int64) bool {
	return p != nil && p.IsAdmin(userID)
}
