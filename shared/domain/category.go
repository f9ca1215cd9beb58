package domain

import "time"

// to iterate thru layers: handler -> service -> storage
type CategoryCreationData struct {
	Name   CategoryName
	Prefix CategoryPrefix
	Locks  LockString
}

// CategoryUpdate carries the fields to change; nil means "keep".
type CategoryUpdate struct {
	Name   *CategoryName
	Prefix *CategoryPrefix
	Locks  *LockString
}

type Category struct {
	Id        CategoryId
	Name      CategoryName
	Prefix    CategoryPrefix
	Locks     LockString
	CreatedAt time.Time
}

func (c Category) LockString() string {
	return c.Locks
}
