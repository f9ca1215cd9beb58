package domain

import "time"

// ReadMark records the last time a subject read a post.
type ReadMark struct {
	SubjectId SubjectId
	PostId    PostId
	ReadAt    time.Time
}

// IsUnread applies the ledger rule: unread iff there is no mark or the mark is
// strictly older than the post's last modification.
func IsUnread(post Post, mark *ReadMark) bool {
	if mark == nil {
		return true
	}
	return mark.ReadAt.Before(post.ModifiedAt)
}

// CatchUpResult lists what a catch-up marked and which mandatory boards were
// left with unread posts.
type CatchUpResult struct {
	Marked    map[BoardAlias]int
	Mandatory []BoardAlias
}

// BoardStats are the post and unread counts of one board for one subject.
type BoardStats struct {
	PostCount int
	Unread    int
}

// BoardUnread lists the posts of one board still unread by a subject.
type BoardUnread struct {
	Board Board
	Posts []Post
}

// Scan is the unread overview across the visible boards. Boards without
// unread posts are left out.
type Scan struct {
	Boards []BoardUnread
	Total  int
}
