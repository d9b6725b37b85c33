// Package memory provides in-memory repository implementations backing the
// application-layer tests. Semantics mirror the postgres implementations:
// nil on missing rows, dense page ordinals, CAS status transitions.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"read-aloud-api/internal/domain/entity"
)

// Store holds all tables behind one mutex.
type Store struct {
	mu       sync.Mutex
	books    map[string]*entity.Book
	pages    map[string]*entity.Page
	blocks   map[string]*entity.TextBlock
	sessions map[string]*entity.ScanSession
	users    map[string]*entity.User
	prefs    map[string]*entity.UserPreferences
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		books:    make(map[string]*entity.Book),
		pages:    make(map[string]*entity.Page),
		blocks:   make(map[string]*entity.TextBlock),
		sessions: make(map[string]*entity.ScanSession),
		users:    make(map[string]*entity.User),
		prefs:    make(map[string]*entity.UserPreferences),
	}
}

// WithTransaction satisfies repository.Transactor; operations are already
// serialized by the store mutex so fn simply runs.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Books returns the book repository view.
func (s *Store) Books() *BookRepo { return &BookRepo{s} }

// Pages returns the page repository view.
func (s *Store) Pages() *PageRepo { return &PageRepo{s} }

// Blocks returns the block repository view.
func (s *Store) Blocks() *BlockRepo { return &BlockRepo{s} }

// Sessions returns the session repository view.
func (s *Store) Sessions() *SessionRepo { return &SessionRepo{s} }

// Users returns the user repository view.
func (s *Store) Users() *UserRepo { return &UserRepo{s} }

// BookRepo implements repository.BookRepository.
type BookRepo struct{ s *Store }

func (r *BookRepo) Create(_ context.Context, book *entity.Book) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *book
	r.s.books[book.ID] = &clone
	return nil
}

func (r *BookRepo) GetByID(_ context.Context, id string) (*entity.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.books[id]
	if !ok {
		return nil, nil
	}
	clone := *b
	return &clone, nil
}

func (r *BookRepo) GetWithPages(ctx context.Context, id string) (*entity.Book, error) {
	book, err := r.GetByID(ctx, id)
	if err != nil || book == nil {
		return book, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.pages {
		if p.BookID == id {
			book.Pages = append(book.Pages, *p)
		}
	}
	sort.Slice(book.Pages, func(i, j int) bool {
		return book.Pages[i].PageNumber < book.Pages[j].PageNumber
	})
	return book, nil
}

func (r *BookRepo) ListByOwner(_ context.Context, ownerID, category string) ([]*entity.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Book
	for _, b := range r.s.books {
		if b.OwnerID != ownerID {
			continue
		}
		if category != "" && b.Category != category {
			continue
		}
		clone := *b
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *BookRepo) Update(_ context.Context, book *entity.Book) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *book
	clone.UpdatedAt = time.Now()
	r.s.books[book.ID] = &clone
	return nil
}

func (r *BookRepo) Complete(ctx context.Context, book *entity.Book) error {
	return r.Update(ctx, book)
}

func (r *BookRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.books, id)
	for pid, p := range r.s.pages {
		if p.BookID != id {
			continue
		}
		delete(r.s.pages, pid)
		for bid, blk := range r.s.blocks {
			if blk.PageID == pid {
				delete(r.s.blocks, bid)
			}
		}
	}
	return nil
}

// PageRepo implements repository.PageRepository.
type PageRepo struct{ s *Store }

func (r *PageRepo) CreateNext(_ context.Context, page *entity.Page) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	max := 0
	for _, p := range r.s.pages {
		if p.BookID == page.BookID && p.PageNumber > max {
			max = p.PageNumber
		}
	}
	page.PageNumber = max + 1
	clone := *page
	r.s.pages[page.ID] = &clone
	return page.PageNumber, nil
}

func (r *PageRepo) GetByID(_ context.Context, id string) (*entity.Page, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.pages[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (r *PageRepo) ListByBook(_ context.Context, bookID string) ([]*entity.Page, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Page
	for _, p := range r.s.pages {
		if p.BookID == bookID {
			clone := *p
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageNumber < out[j].PageNumber })
	return out, nil
}

func (r *PageRepo) CountByBook(ctx context.Context, bookID string) (int64, error) {
	pages, _ := r.ListByBook(ctx, bookID)
	return int64(len(pages)), nil
}

// BlockRepo implements repository.BlockRepository.
type BlockRepo struct{ s *Store }

func (r *BlockRepo) CreateBatch(_ context.Context, blocks []*entity.TextBlock) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range blocks {
		clone := *b
		r.s.blocks[b.ID] = &clone
	}
	return nil
}

func (r *BlockRepo) GetByID(_ context.Context, id string) (*entity.TextBlock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.blocks[id]
	if !ok {
		return nil, nil
	}
	clone := *b
	return &clone, nil
}

func (r *BlockRepo) ListByPage(_ context.Context, pageID string) ([]*entity.TextBlock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.TextBlock
	for _, b := range r.s.blocks {
		if b.PageID == pageID {
			clone := *b
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *BlockRepo) ReplaceForPage(ctx context.Context, pageID string, blocks []*entity.TextBlock) error {
	r.s.mu.Lock()
	for id, b := range r.s.blocks {
		if b.PageID == pageID {
			delete(r.s.blocks, id)
		}
	}
	r.s.mu.Unlock()
	return r.CreateBatch(ctx, blocks)
}

func (r *BlockRepo) SetAudioPath(_ context.Context, blockID, audioPath string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b, ok := r.s.blocks[blockID]; ok {
		b.AudioPath = audioPath
	}
	return nil
}

func (r *BlockRepo) ClearAudioPath(ctx context.Context, blockID string) error {
	return r.SetAudioPath(ctx, blockID, "")
}

func (r *BlockRepo) ListTextByBook(_ context.Context, bookID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	type ordered struct {
		pageNumber int
		created    time.Time
		id         string
		text       string
	}
	var rows []ordered
	for _, b := range r.s.blocks {
		p, ok := r.s.pages[b.PageID]
		if !ok || p.BookID != bookID {
			continue
		}
		rows = append(rows, ordered{p.PageNumber, b.CreatedAt, b.ID, b.OCRText})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].pageNumber != rows[j].pageNumber {
			return rows[i].pageNumber < rows[j].pageNumber
		}
		if !rows[i].created.Equal(rows[j].created) {
			return rows[i].created.Before(rows[j].created)
		}
		return rows[i].id < rows[j].id
	})
	texts := make([]string, 0, len(rows))
	for _, row := range rows {
		texts = append(texts, row.text)
	}
	return texts, nil
}

// SessionRepo implements repository.SessionRepository.
type SessionRepo struct{ s *Store }

func (r *SessionRepo) Create(_ context.Context, session *entity.ScanSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *session
	r.s.sessions[session.Token] = &clone
	return nil
}

func (r *SessionRepo) GetByToken(_ context.Context, token string) (*entity.ScanSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[token]
	if !ok {
		return nil, nil
	}
	clone := *sess
	return &clone, nil
}

func (r *SessionRepo) GetAcceptingUploads(_ context.Context, token string, now time.Time) (*entity.ScanSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[token]
	if !ok || !sess.AcceptsUploads(now) {
		return nil, nil
	}
	clone := *sess
	return &clone, nil
}

func (r *SessionRepo) GetByBook(_ context.Context, bookID string) (*entity.ScanSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.BookID == bookID {
			clone := *sess
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *SessionRepo) TransitionStatus(_ context.Context, token string, from, to entity.SessionStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[token]
	if !ok || sess.Status != from {
		return false, nil
	}
	sess.Status = to
	return true, nil
}

func (r *SessionRepo) UpdateProgress(_ context.Context, token string, progress entity.Progress) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess, ok := r.s.sessions[token]; ok {
		sess.StepLabel = progress.StepLabel
		sess.StepsDone = progress.StepsDone
		sess.StepsTotal = progress.StepsTotal
		sess.Detail = progress.Detail
	}
	return nil
}

func (r *SessionRepo) SetStatus(_ context.Context, token string, status entity.SessionStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess, ok := r.s.sessions[token]; ok {
		sess.Status = status
	}
	return nil
}

// UserRepo implements repository.UserRepository.
type UserRepo struct{ s *Store }

func (r *UserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

func (r *UserRepo) EnsureExists(_ context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		clone := *user
		r.s.users[user.ID] = &clone
	}
	return nil
}

func (r *UserRepo) GetPreferences(_ context.Context, userID string) (*entity.UserPreferences, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prefs[userID]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (r *UserRepo) UpsertPreferences(_ context.Context, prefs *entity.UserPreferences) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *prefs
	clone.UpdatedAt = time.Now()
	r.s.prefs[prefs.UserID] = &clone
	return nil
}
