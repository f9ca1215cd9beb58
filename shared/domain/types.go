package domain

import "github.com/lib/pq"

type (
	SubjectId   = int64
	SubjectName = string
	Permissions = pq.StringArray

	CategoryId     = int64
	CategoryName   = string
	CategoryPrefix = string

	BoardId    = int64
	BoardName  = string
	BoardOrder = int
	BoardAlias = string

	PostId      = int64
	PostSeq     = int
	PostSubject = string
	PostBody    = string

	LockString = string
)
