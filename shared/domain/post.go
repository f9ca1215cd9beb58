package domain

import (
	"fmt"
	"time"
)

// to iterate thru layers: handler -> service -> storage
type PostCreationData struct {
	BoardId    BoardId
	AuthorId   *SubjectId
	AuthorName SubjectName
	Subject    PostSubject
	Body       PostBody
	CreatedAt  time.Time
}

// PostUpdate carries the fields to change; nil means "keep". ModifiedAt is
// always written.
type PostUpdate struct {
	Subject    *PostSubject
	Body       *PostBody
	ModifiedAt time.Time
}

type Post struct {
	Id         PostId
	BoardId    BoardId
	AuthorId   *SubjectId // nil once the author is gone
	AuthorName SubjectName
	Subject    PostSubject
	Body       PostBody
	CreatedAt  time.Time
	ModifiedAt time.Time
	Seq        PostSeq
}

func (p Post) IsAuthor(s Subject) bool {
	return p.AuthorId != nil && *p.AuthorId == s.Id
}

// Alias renders "ANN1/3" given the board alias.
func (p Post) Alias(board BoardAlias) string {
	return fmt.Sprintf("%s/%d", board, p.Seq)
}

// PostHeader is a post listing row with the viewer's unread state.
type PostHeader struct {
	Post   Post
	Unread bool
}
