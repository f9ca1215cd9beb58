package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParsePostRef splits "ANN1/3" into the board token and the post sequence.
func ParsePostRef(ref string) (string, PostSeq, error) {
	board, seq, ok := strings.Cut(strings.TrimSpace(ref), "/")
	if !ok || board == "" || seq == "" {
		return "", 0, fmt.Errorf("post reference '%s' must look like <board>/<number>", ref)
	}
	n, err := strconv.Atoi(seq)
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("post reference '%s' has an invalid number", ref)
	}
	return board, n, nil
}

// for debug
func (b Board) String() string {
	return fmt.Sprintf("[id:%d, alias:%s, name:%s, category:%s, next_seq:%d, mandatory:%v]",
		b.Id, b.Alias(), b.Name, b.CategoryName, b.NextPostSeq, b.Mandatory)
}

func (p Post) String() string {
	return fmt.Sprintf("[id:%d, board:%d, seq:%d, subject:%s, author:%s, created:%s, modified:%s]",
		p.Id, p.BoardId, p.Seq, p.Subject, p.AuthorName,
		p.CreatedAt.Format(time.StampMilli), p.ModifiedAt.Format(time.StampMilli))
}
