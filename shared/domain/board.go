package domain

import (
	"strconv"
	"time"
)

// to iterate thru layers: handler -> service -> storage
type BoardCreationData struct {
	CategoryId CategoryId
	Name       BoardName
	Order      BoardOrder
	Locks      LockString
	Mandatory  bool
}

// BoardUpdate carries the fields to change; nil means "keep".
type BoardUpdate struct {
	Name      *BoardName
	Order     *BoardOrder
	Locks     *LockString
	Mandatory *bool
}

type Board struct {
	Id          BoardId
	CategoryId  CategoryId
	Name        BoardName
	Order       BoardOrder
	Locks       LockString
	NextPostSeq PostSeq
	Mandatory   bool
	CreatedAt   time.Time

	// Denormalized from the owning category on every read.
	CategoryName   CategoryName
	CategoryPrefix CategoryPrefix
}

// Alias is the human-facing identifier: category prefix followed by the order.
func (b Board) Alias() BoardAlias {
	return b.CategoryPrefix + strconv.Itoa(b.Order)
}

func (b Board) LockString() string {
	return b.Locks
}

// BoardSummary is the per-board listing row: counts, membership and the
// permission flags of the viewing subject.
type BoardSummary struct {
	Board      Board
	PostCount  int
	Unread     int
	Membership string
	Flags      string
}

const (
	MembershipMember    = "Yes"
	MembershipIgnoring  = "No"
	MembershipMandatory = "MND"
)
