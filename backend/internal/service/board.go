package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/itchan-dev/bbs/backend/internal/lock"
	"github.com/itchan-dev/bbs/backend/internal/selector"
	"github.com/itchan-dev/bbs/shared/domain"
	"github.com/itchan-dev/bbs/shared/errors"
	"github.com/itchan-dev/bbs/shared/logger"
)

// CatchUpAll as the only catch-up target means every visible board.
const CatchUpAll = "all"

// to mock service in tests
type BoardService interface {
	CreatePost(ctx context.Context, s domain.Subject, boardToken string, subject domain.PostSubject, body domain.PostBody) (domain.Board, domain.Post, error)
	ReadPosts(ctx context.Context, s domain.Subject, boardToken string, sel string) (domain.Board, []domain.Post, error)
	ListPosts(ctx context.Context, s domain.Subject, boardToken string) (domain.Board, []domain.PostHeader, error)
	EditPost(ctx context.Context, s domain.Subject, postRef string, find, replace string) (domain.Post, error)
	RenamePost(ctx context.Context, s domain.Subject, postRef string, newSubject domain.PostSubject) (domain.Post, error)
	DeletePost(ctx context.Context, s domain.Subject, postRef string) error
	SquishPosts(ctx context.Context, s domain.Subject, boardToken string) (domain.Board, int, error)
	CatchUp(ctx context.Context, s domain.Subject, targets []string) (domain.CatchUpResult, error)
	Summaries(ctx context.Context, s domain.Subject) ([]domain.BoardSummary, error)
	Scan(ctx context.Context, s domain.Subject) (domain.Scan, error)
	ReadNext(ctx context.Context, s domain.Subject) (domain.Board, domain.Post, error)
}

type Board struct {
	storage   PostStorage
	catalog   CatalogService
	ledger    LedgerService
	auth      Authorizer
	validator PostValidator
	now       func() time.Time
}

type PostStorage interface {
	// CreatePost assigns the next sequence number of the board and writes the
	// author's read mark in the same transaction.
	CreatePost(ctx context.Context, data domain.PostCreationData) (domain.Post, error)
	GetPost(ctx context.Context, board domain.BoardId, seq domain.PostSeq) (domain.Post, error)
	// ListPosts returns the posts of a board ordered by sequence.
	ListPosts(ctx context.Context, board domain.BoardId) ([]domain.Post, error)
	UpdatePost(ctx context.Context, id domain.PostId, update domain.PostUpdate) (domain.Post, error)
	DeletePost(ctx context.Context, id domain.PostId) error
	// SquishPosts renumbers the posts of a board from 1 in creation order and
	// returns how many there are.
	SquishPosts(ctx context.Context, board domain.BoardId) (int, error)
}

type PostValidator interface {
	PostSubject(subject string) error
	PostBody(body string) error
}

func NewBoard(storage PostStorage, catalog CatalogService, ledger LedgerService, auth Authorizer, validator PostValidator) BoardService {
	return &Board{
		storage:   storage,
		catalog:   catalog,
		ledger:    ledger,
		auth:      auth,
		validator: validator,
		now:       now,
	}
}

func (b *Board) CreatePost(ctx context.Context, s domain.Subject, boardToken string, subject domain.PostSubject, body domain.PostBody) (domain.Board, domain.Post, error) {
	board, err := b.catalog.FindBoard(ctx, s, boardToken)
	if err != nil {
		return domain.Board{}, domain.Post{}, err
	}
	if !b.auth.Authorize(s, board, lock.Post) {
		return domain.Board{}, domain.Post{}, denied("board", board.Alias(), lock.Post)
	}
	subject = strings.TrimSpace(subject)
	if err := b.validator.PostSubject(subject); err != nil {
		return domain.Board{}, domain.Post{}, err
	}
	if err := b.validator.PostBody(body); err != nil {
		return domain.Board{}, domain.Post{}, err
	}

	authorId := s.Id
	post, err := b.storage.CreatePost(ctx, domain.PostCreationData{
		BoardId:    board.Id,
		AuthorId:   &authorId,
		AuthorName: s.Name,
		Subject:    subject,
		Body:       body,
		CreatedAt:  b.now(),
	})
	if err != nil {
		return domain.Board{}, domain.Post{}, err
	}
	postsCreatedTotal.Inc()
	logger.FromContext(ctx).Info("post created", "post", post.Alias(board.Alias()), "subject_id", s.Id)
	return board, post, nil
}

// ReadPosts returns the posts named by sel and marks each of them read.
func (b *Board) ReadPosts(ctx context.Context, s domain.Subject, boardToken string, sel string) (domain.Board, []domain.Post, error) {
	selection, err := selector.Parse(sel)
	if err != nil {
		return domain.Board{}, nil, err
	}
	board, err := b.catalog.FindBoard(ctx, s, boardToken)
	if err != nil {
		return domain.Board{}, nil, err
	}

	posts, err := b.storage.ListPosts(ctx, board.Id)
	if err != nil {
		return domain.Board{}, nil, err
	}
	unread, err := b.ledger.UnreadFor(ctx, s, board)
	if err != nil {
		return domain.Board{}, nil, err
	}

	existing := make([]int, len(posts))
	bySeq := make(map[domain.PostSeq]domain.Post, len(posts))
	for i, p := range posts {
		existing[i] = p.Seq
		bySeq[p.Seq] = p
	}
	unreadSeqs := make([]int, len(unread))
	for i, p := range unread {
		unreadSeqs[i] = p.Seq
	}

	chosen, err := selection.Resolve(existing, unreadSeqs)
	if err != nil {
		return domain.Board{}, nil, err
	}
	result := make([]domain.Post, 0, len(chosen))
	for _, seq := range chosen {
		result = append(result, bySeq[seq])
	}

	if err := b.ledger.MarkSeen(ctx, s, result); err != nil {
		return domain.Board{}, nil, err
	}
	postsMarkedReadTotal.WithLabelValues("read").Add(float64(len(result)))
	return board, result, nil
}

// ListPosts returns the post headers of a board with the subject's unread
// state. Nothing is marked read.
func (b *Board) ListPosts(ctx context.Context, s domain.Subject, boardToken string) (domain.Board, []domain.PostHeader, error) {
	board, err := b.catalog.FindBoard(ctx, s, boardToken)
	if err != nil {
		return domain.Board{}, nil, err
	}
	posts, err := b.storage.ListPosts(ctx, board.Id)
	if err != nil {
		return domain.Board{}, nil, err
	}
	unread, err := b.ledger.UnreadFor(ctx, s, board)
	if err != nil {
		return domain.Board{}, nil, err
	}
	isUnread := make(map[domain.PostId]bool, len(unread))
	for _, p := range unread {
		isUnread[p.Id] = true
	}

	headers := make([]domain.PostHeader, len(posts))
	for i, p := range posts {
		headers[i] = domain.PostHeader{Post: p, Unread: isUnread[p.Id]}
	}
	return board, headers, nil
}

// EditPost replaces every literal occurrence of find in the body. The post
// becomes unread for everyone but the editor.
func (b *Board) EditPost(ctx context.Context, s domain.Subject, postRef string, find, replace string) (domain.Post, error) {
	board, post, err := b.moderatedPost(ctx, s, postRef)
	if err != nil {
		return domain.Post{}, err
	}
	if find == "" {
		return domain.Post{}, errors.InvalidArgument("post", post.Alias(board.Alias()), "Must enter text to find")
	}
	if !strings.Contains(post.Body, find) {
		return domain.Post{}, errors.New(errors.KindNotFound, "text", find,
			fmt.Sprintf("Text '%s' not found in post %s", find, post.Alias(board.Alias())))
	}
	body := strings.ReplaceAll(post.Body, find, replace)
	if err := b.validator.PostBody(body); err != nil {
		return domain.Post{}, err
	}

	return b.update(ctx, s, board, post, domain.PostUpdate{Body: &body})
}

func (b *Board) RenamePost(ctx context.Context, s domain.Subject, postRef string, newSubject domain.PostSubject) (domain.Post, error) {
	board, post, err := b.moderatedPost(ctx, s, postRef)
	if err != nil {
		return domain.Post{}, err
	}
	newSubject = strings.TrimSpace(newSubject)
	if err := b.validator.PostSubject(newSubject); err != nil {
		return domain.Post{}, err
	}
	return b.update(ctx, s, board, post, domain.PostUpdate{Subject: &newSubject})
}

// DeletePost removes a post and its read marks. The sequence number is not
// reused.
func (b *Board) DeletePost(ctx context.Context, s domain.Subject, postRef string) error {
	board, post, err := b.moderatedPost(ctx, s, postRef)
	if err != nil {
		return err
	}
	if err := b.storage.DeletePost(ctx, post.Id); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("post deleted", "post", post.Alias(board.Alias()), "subject_id", s.Id)
	return nil
}

// SquishPosts closes the numbering gaps left by deletions.
func (b *Board) SquishPosts(ctx context.Context, s domain.Subject, boardToken string) (domain.Board, int, error) {
	board, err := b.catalog.FindBoard(ctx, s, boardToken)
	if err != nil {
		return domain.Board{}, 0, err
	}
	admin, err := b.catalog.IsBoardAdmin(ctx, s, board)
	if err != nil {
		return domain.Board{}, 0, err
	}
	if !admin {
		return domain.Board{}, 0, denied("board", board.Alias(), lock.Admin)
	}
	count, err := b.storage.SquishPosts(ctx, board.Id)
	if err != nil {
		return domain.Board{}, 0, err
	}
	logger.FromContext(ctx).Info("board squished", "board", board.Alias(), "posts", count, "subject_id", s.Id)
	return board, count, nil
}

// CatchUp marks every post of the target boards read. Naming a mandatory
// board fails before anything is marked; with CatchUpAll mandatory boards are
// skipped and the ones still holding unread posts are reported.
func (b *Board) CatchUp(ctx context.Context, s domain.Subject, targets []string) (domain.CatchUpResult, error) {
	if len(targets) == 0 {
		return domain.CatchUpResult{}, errors.InvalidArgument("board", "", "No boards entered to catch up")
	}

	all := len(targets) == 1 && strings.EqualFold(strings.TrimSpace(targets[0]), CatchUpAll)
	var boards []domain.Board
	if all {
		visible, err := b.catalog.VisibleBoards(ctx, s)
		if err != nil {
			return domain.CatchUpResult{}, err
		}
		boards = visible
	} else {
		seen := make(map[domain.BoardId]bool, len(targets))
		for _, t := range targets {
			board, err := b.catalog.FindBoard(ctx, s, t)
			if err != nil {
				return domain.CatchUpResult{}, err
			}
			if board.Mandatory {
				return domain.CatchUpResult{}, errors.New(errors.KindMandatoryBoard, "board", board.Alias(),
					fmt.Sprintf("Board '%s' is mandatory and can't be caught up", board.Alias()))
			}
			if !seen[board.Id] {
				seen[board.Id] = true
				boards = append(boards, board)
			}
		}
	}

	result := domain.CatchUpResult{Marked: make(map[domain.BoardAlias]int)}
	for _, board := range boards {
		unread, err := b.ledger.UnreadFor(ctx, s, board)
		if err != nil {
			return result, err
		}
		if board.Mandatory {
			if len(unread) > 0 {
				result.Mandatory = append(result.Mandatory, board.Alias())
			}
			continue
		}
		if err := b.ledger.MarkSeen(ctx, s, unread); err != nil {
			return result, err
		}
		result.Marked[board.Alias()] = len(unread)
		postsMarkedReadTotal.WithLabelValues("catchup").Add(float64(len(unread)))
	}
	return result, nil
}

// Summaries lists the visible boards with counts, membership and the
// subject's permission flags.
func (b *Board) Summaries(ctx context.Context, s domain.Subject) ([]domain.BoardSummary, error) {
	boards, err := b.catalog.VisibleBoards(ctx, s)
	if err != nil {
		return nil, err
	}
	stats, err := b.ledger.BoardStats(ctx, s)
	if err != nil {
		return nil, err
	}
	ignored, err := b.catalog.IgnoredBoards(ctx, s)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.BoardSummary, len(boards))
	for i, board := range boards {
		membership := domain.MembershipMember
		switch {
		case board.Mandatory:
			membership = domain.MembershipMandatory
		case ignored[board.Id]:
			membership = domain.MembershipIgnoring
		}
		st := stats[board.Id]
		summaries[i] = domain.BoardSummary{
			Board:      board,
			PostCount:  st.PostCount,
			Unread:     st.Unread,
			Membership: membership,
			Flags:      b.auth.Flags(s, board, lock.Read, lock.Post, lock.Admin),
		}
	}
	return summaries, nil
}

// Scan collects the unread posts of every visible board, in listing order.
func (b *Board) Scan(ctx context.Context, s domain.Subject) (domain.Scan, error) {
	boards, err := b.catalog.VisibleBoards(ctx, s)
	if err != nil {
		return domain.Scan{}, err
	}
	var scan domain.Scan
	for _, board := range boards {
		unread, err := b.ledger.UnreadFor(ctx, s, board)
		if err != nil {
			return domain.Scan{}, err
		}
		if len(unread) == 0 {
			continue
		}
		scan.Boards = append(scan.Boards, domain.BoardUnread{Board: board, Posts: unread})
		scan.Total += len(unread)
	}
	return scan, nil
}

// ReadNext returns the first unread post across the visible boards and marks
// it read.
func (b *Board) ReadNext(ctx context.Context, s domain.Subject) (domain.Board, domain.Post, error) {
	boards, err := b.catalog.VisibleBoards(ctx, s)
	if err != nil {
		return domain.Board{}, domain.Post{}, err
	}
	for _, board := range boards {
		unread, err := b.ledger.UnreadFor(ctx, s, board)
		if err != nil {
			return domain.Board{}, domain.Post{}, err
		}
		if len(unread) == 0 {
			continue
		}
		post := unread[0]
		if err := b.ledger.MarkSeen(ctx, s, unread[:1]); err != nil {
			return domain.Board{}, domain.Post{}, err
		}
		postsMarkedReadTotal.WithLabelValues("next").Inc()
		return board, post, nil
	}
	return domain.Board{}, domain.Post{}, errors.New(errors.KindNoMatches, "post", "", "No unread posts to scan for")
}

// moderatedPost resolves postRef and checks that s is its author or a board
// admin.
func (b *Board) moderatedPost(ctx context.Context, s domain.Subject, postRef string) (domain.Board, domain.Post, error) {
	boardToken, seq, err := domain.ParsePostRef(postRef)
	if err != nil {
		return domain.Board{}, domain.Post{}, errors.InvalidArgument("post", postRef, err.Error())
	}
	board, err := b.catalog.FindBoard(ctx, s, boardToken)
	if err != nil {
		return domain.Board{}, domain.Post{}, err
	}
	post, err := b.storage.GetPost(ctx, board.Id, seq)
	if err != nil {
		return domain.Board{}, domain.Post{}, err
	}
	if post.IsAuthor(s) {
		return board, post, nil
	}
	admin, err := b.catalog.IsBoardAdmin(ctx, s, board)
	if err != nil {
		return domain.Board{}, domain.Post{}, err
	}
	if !admin {
		return domain.Board{}, domain.Post{}, denied("post", post.Alias(board.Alias()), lock.Admin)
	}
	return board, post, nil
}

// update writes a modification with a strictly newer timestamp and advances
// the editor's own read mark to it.
func (b *Board) update(ctx context.Context, s domain.Subject, board domain.Board, post domain.Post, update domain.PostUpdate) (domain.Post, error) {
	modified := b.now()
	if !modified.After(post.ModifiedAt) {
		modified = post.ModifiedAt.Add(time.Microsecond)
	}
	update.ModifiedAt = modified

	updated, err := b.storage.UpdatePost(ctx, post.Id, update)
	if err != nil {
		return domain.Post{}, err
	}
	if err := b.ledger.MarkRead(ctx, s, updated, updated.ModifiedAt); err != nil {
		return domain.Post{}, err
	}
	postsEditedTotal.Inc()
	logger.FromContext(ctx).Info("post modified", "post", updated.Alias(board.Alias()), "subject_id", s.Id)
	return updated, nil
}
