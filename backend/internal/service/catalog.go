package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/itchan-dev/bbs/backend/internal/lock"
	"github.com/itchan-dev/bbs/shared/domain"
	"github.com/itchan-dev/bbs/shared/errors"
	"github.com/itchan-dev/bbs/shared/logger"
)

// to mock service in tests
type CatalogService interface {
	CreateCategory(ctx context.Context, s domain.Subject, name domain.CategoryName, prefix domain.CategoryPrefix) (domain.Category, error)
	FindCategory(ctx context.Context, s domain.Subject, token string) (domain.Category, error)
	VisibleCategories(ctx context.Context, s domain.Subject) ([]domain.Category, error)
	RenameCategory(ctx context.Context, s domain.Subject, token string, newName domain.CategoryName) (domain.Category, error)
	SetCategoryPrefix(ctx context.Context, s domain.Subject, token string, newPrefix domain.CategoryPrefix) (domain.Category, error)
	SetCategoryLocks(ctx context.Context, s domain.Subject, token string, locks domain.LockString) (domain.Category, error)
	DeleteCategory(ctx context.Context, s domain.Subject, token string, verifyName domain.CategoryName, verifyPrefix domain.CategoryPrefix) error

	CreateBoard(ctx context.Context, s domain.Subject, categoryToken string, name domain.BoardName, order domain.BoardOrder) (domain.Board, error)
	FindBoard(ctx context.Context, s domain.Subject, token string) (domain.Board, error)
	GetBoard(ctx context.Context, s domain.Subject, id domain.BoardId) (domain.Board, error)
	VisibleBoards(ctx context.Context, s domain.Subject) ([]domain.Board, error)
	RenameBoard(ctx context.Context, s domain.Subject, token string, newName domain.BoardName) (domain.Board, error)
	ReorderBoard(ctx context.Context, s domain.Subject, token string, order domain.BoardOrder) (domain.Board, error)
	SetBoardLocks(ctx context.Context, s domain.Subject, token string, locks domain.LockString) (domain.Board, error)
	SetMandatory(ctx context.Context, s domain.Subject, token string, mandatory bool) (domain.Board, error)
	DeleteBoard(ctx context.Context, s domain.Subject, token string, verifyName domain.BoardName) error

	JoinBoard(ctx context.Context, s domain.Subject, token string) (domain.Board, error)
	LeaveBoard(ctx context.Context, s domain.Subject, token string) (domain.Board, error)
	IgnoredBoards(ctx context.Context, s domain.Subject) (map[domain.BoardId]bool, error)
	IsBoardAdmin(ctx context.Context, s domain.Subject, board domain.Board) (bool, error)
}

type Catalog struct {
	storage   CatalogStorage
	auth      Authorizer
	validator CatalogValidator
	locks     DefaultLocks
}

type CatalogStorage interface {
	CreateCategory(ctx context.Context, data domain.CategoryCreationData) (domain.Category, error)
	GetCategory(ctx context.Context, id domain.CategoryId) (domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	UpdateCategory(ctx context.Context, id domain.CategoryId, update domain.CategoryUpdate) (domain.Category, error)
	DeleteCategory(ctx context.Context, id domain.CategoryId) error

	// CreateBoard picks the next free order when data.Order <= 0.
	CreateBoard(ctx context.Context, data domain.BoardCreationData) (domain.Board, error)
	GetBoard(ctx context.Context, id domain.BoardId) (domain.Board, error)
	ListBoards(ctx context.Context) ([]domain.Board, error)
	UpdateBoard(ctx context.Context, id domain.BoardId, update domain.BoardUpdate) (domain.Board, error)
	DeleteBoard(ctx context.Context, id domain.BoardId) error

	SetIgnored(ctx context.Context, subject domain.SubjectId, board domain.BoardId, ignored bool) error
	IgnoredBoards(ctx context.Context, subject domain.SubjectId) ([]domain.BoardId, error)
}

type CatalogValidator interface {
	CategoryName(name string) error
	CategoryPrefix(prefix string) error
	BoardName(name string) error
}

func NewCatalog(storage CatalogStorage, auth Authorizer, validator CatalogValidator, locks DefaultLocks) CatalogService {
	return &Catalog{storage, auth, validator, locks}
}

// =========================================================================
// Categories
// =========================================================================

func (c *Catalog) CreateCategory(ctx context.Context, s domain.Subject, name domain.CategoryName, prefix domain.CategoryPrefix) (domain.Category, error) {
	if !c.auth.Authorize(s, siteLocks(c.locks.Site), lock.Create) {
		return domain.Category{}, denied("site", "categories", lock.Create)
	}
	if err := c.validator.CategoryName(name); err != nil {
		return domain.Category{}, err
	}
	if err := c.validator.CategoryPrefix(prefix); err != nil {
		return domain.Category{}, err
	}

	category, err := c.storage.CreateCategory(ctx, domain.CategoryCreationData{Name: name, Prefix: prefix, Locks: c.locks.Category})
	if err != nil {
		return domain.Category{}, err
	}
	logger.FromContext(ctx).Info("category created", "category", category.Name, "prefix", category.Prefix, "subject_id", s.Id)
	return category, nil
}

// FindCategory resolves token among the visible categories: an exact name,
// then an exact prefix, then a unique name prefix match.
func (c *Catalog) FindCategory(ctx context.Context, s domain.Subject, token string) (domain.Category, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Category{}, errors.InvalidArgument("category", token, "Must enter a category name")
	}
	candidates, err := c.VisibleCategories(ctx, s)
	if err != nil {
		return domain.Category{}, err
	}

	for _, cat := range candidates {
		if strings.EqualFold(cat.Name, token) {
			return cat, nil
		}
	}
	for _, cat := range candidates {
		if cat.Prefix != "" && strings.EqualFold(cat.Prefix, token) {
			return cat, nil
		}
	}

	var matches []domain.Category
	lower := strings.ToLower(token)
	for _, cat := range candidates {
		if strings.HasPrefix(strings.ToLower(cat.Name), lower) {
			matches = append(matches, cat)
		}
	}
	switch len(matches) {
	case 0:
		return domain.Category{}, errors.NotFound("category", token)
	case 1:
		return matches[0], nil
	default:
		return domain.Category{}, errors.New(errors.KindAmbiguous, "category", token,
			fmt.Sprintf("Category '%s' matches %d categories", token, len(matches)))
	}
}

// VisibleCategories returns the categories s may see, sorted by name.
func (c *Catalog) VisibleCategories(ctx context.Context, s domain.Subject) ([]domain.Category, error) {
	all, err := c.storage.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]domain.Category, 0, len(all))
	for _, cat := range all {
		if c.auth.Authorize(s, cat, lock.See) {
			visible = append(visible, cat)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return strings.ToLower(visible[i].Name) < strings.ToLower(visible[j].Name)
	})
	return visible, nil
}

func (c *Catalog) RenameCategory(ctx context.Context, s domain.Subject, token string, newName domain.CategoryName) (domain.Category, error) {
	cat, err := c.administeredCategory(ctx, s, token)
	if err != nil {
		return domain.Category{}, err
	}
	if err := c.validator.CategoryName(newName); err != nil {
		return domain.Category{}, err
	}
	updated, err := c.storage.UpdateCategory(ctx, cat.Id, domain.CategoryUpdate{Name: &newName})
	if err != nil {
		return domain.Category{}, err
	}
	logger.FromContext(ctx).Info("category renamed", "old", cat.Name, "new", updated.Name, "subject_id", s.Id)
	return updated, nil
}

func (c *Catalog) SetCategoryPrefix(ctx context.Context, s domain.Subject, token string, newPrefix domain.CategoryPrefix) (domain.Category, error) {
	cat, err := c.administeredCategory(ctx, s, token)
	if err != nil {
		return domain.Category{}, err
	}
	if err := c.validator.CategoryPrefix(newPrefix); err != nil {
		return domain.Category{}, err
	}
	updated, err := c.storage.UpdateCategory(ctx, cat.Id, domain.CategoryUpdate{Prefix: &newPrefix})
	if err != nil {
		return domain.Category{}, err
	}
	logger.FromContext(ctx).Info("category prefix changed", "category", cat.Name, "old", cat.Prefix, "new", updated.Prefix)
	return updated, nil
}

// SetCategoryLocks overlays locks on the category's current lock string; only
// the capabilities named in locks change.
func (c *Catalog) SetCategoryLocks(ctx context.Context, s domain.Subject, token string, locks domain.LockString) (domain.Category, error) {
	cat, err := c.administeredCategory(ctx, s, token)
	if err != nil {
		return domain.Category{}, err
	}
	merged, err := mergeLocks(cat.Locks, locks, lock.CategoryCapabilities)
	if err != nil {
		return domain.Category{}, err
	}
	return c.storage.UpdateCategory(ctx, cat.Id, domain.CategoryUpdate{Locks: &merged})
}

// DeleteCategory removes a category with all its boards, posts and read
// marks. Name and prefix must be repeated exactly.
func (c *Catalog) DeleteCategory(ctx context.Context, s domain.Subject, token string, verifyName domain.CategoryName, verifyPrefix domain.CategoryPrefix) error {
	if !c.auth.Authorize(s, siteLocks(c.locks.Site), lock.Delete) {
		return denied("site", "categories", lock.Delete)
	}
	cat, err := c.FindCategory(ctx, s, token)
	if err != nil {
		return err
	}
	if verifyName != cat.Name {
		return errors.InvalidArgument("category", verifyName, "Names must be exact for verification")
	}
	if verifyPrefix != cat.Prefix {
		return errors.InvalidArgument("category", verifyPrefix, "Must provide exact prefix for verification")
	}
	if err := c.storage.DeleteCategory(ctx, cat.Id); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("category deleted", "category", cat.Name, "subject_id", s.Id)
	return nil
}

func (c *Catalog) administeredCategory(ctx context.Context, s domain.Subject, token string) (domain.Category, error) {
	cat, err := c.FindCategory(ctx, s, token)
	if err != nil {
		return domain.Category{}, err
	}
	if !c.auth.Authorize(s, siteLocks(c.locks.Site), lock.Admin) && !c.auth.Authorize(s, cat, lock.Admin) {
		return domain.Category{}, denied("category", cat.Name, lock.Admin)
	}
	return cat, nil
}

// =========================================================================
// Boards
// =========================================================================

func (c *Catalog) CreateBoard(ctx context.Context, s domain.Subject, categoryToken string, name domain.BoardName, order domain.BoardOrder) (domain.Board, error) {
	cat, err := c.FindCategory(ctx, s, categoryToken)
	if err != nil {
		return domain.Board{}, err
	}
	if !c.auth.Authorize(s, cat, lock.Create) {
		return domain.Board{}, denied("category", cat.Name, lock.Create)
	}
	if err := c.validator.BoardName(name); err != nil {
		return domain.Board{}, err
	}

	board, err := c.storage.CreateBoard(ctx, domain.BoardCreationData{
		CategoryId: cat.Id,
		Name:       name,
		Order:      order,
		Locks:      c.locks.Board,
	})
	if err != nil {
		return domain.Board{}, err
	}
	logger.FromContext(ctx).Info("board created", "board", board.Alias(), "name", board.Name, "subject_id", s.Id)
	return board, nil
}

// FindBoard matches token against the aliases of the visible boards,
// case-insensitively and exactly.
func (c *Catalog) FindBoard(ctx context.Context, s domain.Subject, token string) (domain.Board, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Board{}, errors.InvalidArgument("board", token, "No board entered to find")
	}
	boards, err := c.VisibleBoards(ctx, s)
	if err != nil {
		return domain.Board{}, err
	}

	var found []domain.Board
	for _, b := range boards {
		if strings.EqualFold(b.Alias(), token) {
			found = append(found, b)
		}
	}
	switch len(found) {
	case 0:
		return domain.Board{}, errors.NotFound("board", token)
	case 1:
		return found[0], nil
	default:
		return domain.Board{}, errors.New(errors.KindAmbiguous, "board", token,
			fmt.Sprintf("Board '%s' matches %d boards", token, len(found)))
	}
}

// GetBoard loads a board by id. Boards s may not read are reported as missing.
func (c *Catalog) GetBoard(ctx context.Context, s domain.Subject, id domain.BoardId) (domain.Board, error) {
	board, err := c.storage.GetBoard(ctx, id)
	if err != nil {
		return domain.Board{}, err
	}
	cat, err := c.storage.GetCategory(ctx, board.CategoryId)
	if err != nil {
		return domain.Board{}, err
	}
	if !c.visible(s, cat, board) {
		return domain.Board{}, errors.NotFound("board", board.Alias())
	}
	return board, nil
}

// VisibleBoards lists the boards s may read in a visible category, sorted by
// category name and then by order.
func (c *Catalog) VisibleBoards(ctx context.Context, s domain.Subject) ([]domain.Board, error) {
	categories, err := c.storage.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	byId := make(map[domain.CategoryId]domain.Category, len(categories))
	for _, cat := range categories {
		byId[cat.Id] = cat
	}

	boards, err := c.storage.ListBoards(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]domain.Board, 0, len(boards))
	for _, b := range boards {
		cat, ok := byId[b.CategoryId]
		if !ok {
			continue
		}
		if c.visible(s, cat, b) {
			visible = append(visible, b)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		ci, cj := strings.ToLower(visible[i].CategoryName), strings.ToLower(visible[j].CategoryName)
		if ci != cj {
			return ci < cj
		}
		return visible[i].Order < visible[j].Order
	})
	return visible, nil
}

func (c *Catalog) RenameBoard(ctx context.Context, s domain.Subject, token string, newName domain.BoardName) (domain.Board, error) {
	board, _, err := c.administeredBoard(ctx, s, token, lock.Admin)
	if err != nil {
		return domain.Board{}, err
	}
	if err := c.validator.BoardName(newName); err != nil {
		return domain.Board{}, err
	}
	updated, err := c.storage.UpdateBoard(ctx, board.Id, domain.BoardUpdate{Name: &newName})
	if err != nil {
		return domain.Board{}, err
	}
	logger.FromContext(ctx).Info("board renamed", "board", board.Alias(), "old", board.Name, "new", updated.Name)
	return updated, nil
}

// ReorderBoard moves a board to a new order. An order held by another board
// of the category is an OrderConflict; boards are never swapped.
func (c *Catalog) ReorderBoard(ctx context.Context, s domain.Subject, token string, order domain.BoardOrder) (domain.Board, error) {
	board, _, err := c.administeredBoard(ctx, s, token, lock.Admin)
	if err != nil {
		return domain.Board{}, err
	}
	if order <= 0 {
		return domain.Board{}, errors.InvalidArgument("board", fmt.Sprint(order), "Board order must be a positive number")
	}
	if order == board.Order {
		return board, nil
	}
	updated, err := c.storage.UpdateBoard(ctx, board.Id, domain.BoardUpdate{Order: &order})
	if err != nil {
		return domain.Board{}, err
	}
	logger.FromContext(ctx).Info("board reordered", "old", board.Alias(), "new", updated.Alias())
	return updated, nil
}

func (c *Catalog) SetBoardLocks(ctx context.Context, s domain.Subject, token string, locks domain.LockString) (domain.Board, error) {
	board, _, err := c.administeredBoard(ctx, s, token, lock.Admin)
	if err != nil {
		return domain.Board{}, err
	}
	merged, err := mergeLocks(board.Locks, locks, lock.BoardCapabilities)
	if err != nil {
		return domain.Board{}, err
	}
	return c.storage.UpdateBoard(ctx, board.Id, domain.BoardUpdate{Locks: &merged})
}

func (c *Catalog) SetMandatory(ctx context.Context, s domain.Subject, token string, mandatory bool) (domain.Board, error) {
	board, _, err := c.administeredBoard(ctx, s, token, lock.Admin)
	if err != nil {
		return domain.Board{}, err
	}
	return c.storage.UpdateBoard(ctx, board.Id, domain.BoardUpdate{Mandatory: &mandatory})
}

// DeleteBoard removes a board with its posts, read marks and ignore rows. The
// board name must be repeated exactly.
func (c *Catalog) DeleteBoard(ctx context.Context, s domain.Subject, token string, verifyName domain.BoardName) error {
	board, _, err := c.administeredBoard(ctx, s, token, lock.Delete)
	if err != nil {
		return err
	}
	if verifyName != board.Name {
		return errors.InvalidArgument("board", verifyName, "Names must be exact for verification")
	}
	if err := c.storage.DeleteBoard(ctx, board.Id); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("board deleted", "board", board.Alias(), "name", board.Name, "subject_id", s.Id)
	return nil
}

func (c *Catalog) JoinBoard(ctx context.Context, s domain.Subject, token string) (domain.Board, error) {
	board, err := c.FindBoard(ctx, s, token)
	if err != nil {
		return domain.Board{}, err
	}
	if err := c.storage.SetIgnored(ctx, s.Id, board.Id, false); err != nil {
		return domain.Board{}, err
	}
	return board, nil
}

// LeaveBoard adds the board to the subject's ignore list. Mandatory boards
// can't be left.
func (c *Catalog) LeaveBoard(ctx context.Context, s domain.Subject, token string) (domain.Board, error) {
	board, err := c.FindBoard(ctx, s, token)
	if err != nil {
		return domain.Board{}, err
	}
	if board.Mandatory {
		return domain.Board{}, errors.New(errors.KindMandatoryBoard, "board", board.Alias(),
			fmt.Sprintf("Board '%s' is mandatory and can't be left", board.Alias()))
	}
	if err := c.storage.SetIgnored(ctx, s.Id, board.Id, true); err != nil {
		return domain.Board{}, err
	}
	return board, nil
}

func (c *Catalog) IgnoredBoards(ctx context.Context, s domain.Subject) (map[domain.BoardId]bool, error) {
	ids, err := c.storage.IgnoredBoards(ctx, s.Id)
	if err != nil {
		return nil, err
	}
	ignored := make(map[domain.BoardId]bool, len(ids))
	for _, id := range ids {
		ignored[id] = true
	}
	return ignored, nil
}

// IsBoardAdmin reports whether s administers the board directly or through
// its category.
func (c *Catalog) IsBoardAdmin(ctx context.Context, s domain.Subject, board domain.Board) (bool, error) {
	if c.auth.Authorize(s, board, lock.Admin) {
		return true, nil
	}
	cat, err := c.storage.GetCategory(ctx, board.CategoryId)
	if err != nil {
		return false, err
	}
	return c.auth.Authorize(s, cat, lock.Admin), nil
}

// administeredBoard finds a board and checks capability c on its category.
func (c *Catalog) administeredBoard(ctx context.Context, s domain.Subject, token string, capability lock.Capability) (domain.Board, domain.Category, error) {
	board, err := c.FindBoard(ctx, s, token)
	if err != nil {
		return domain.Board{}, domain.Category{}, err
	}
	cat, err := c.storage.GetCategory(ctx, board.CategoryId)
	if err != nil {
		return domain.Board{}, domain.Category{}, err
	}
	if !c.auth.Authorize(s, cat, capability) {
		return domain.Board{}, domain.Category{}, denied("board", board.Alias(), capability)
	}
	return board, cat, nil
}

func (c *Catalog) visible(s domain.Subject, cat domain.Category, board domain.Board) bool {
	return c.auth.Authorize(s, cat, lock.See) && c.auth.Authorize(s, board, lock.Read)
}

func mergeLocks(current, update string, allowed []lock.Capability) (string, error) {
	if _, err := lock.Validate(update, allowed); err != nil {
		return "", errors.InvalidArgument("locks", update, err.Error())
	}
	merged, err := lock.Merge(current, update)
	if err != nil {
		// current is unparsable: the update replaces it wholesale
		merged = update
	}
	if _, err := lock.Validate(merged, allowed); err != nil {
		return "", errors.InvalidArgument("locks", merged, err.Error())
	}
	return merged, nil
}

func denied(resource, value string, c lock.Capability) error {
	permissionDenialsTotal.WithLabelValues(resource, string(c)).Inc()
	return errors.PermissionDenied(resource, value)
}
