package devserver

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ticketsync/internal/domain/ticket"
	"ticketsync/internal/domain/user"
	xerrors "ticketsync/internal/pkg/errors"
)

type userRecord struct {
	user.User
	passwordHash []byte
}

// MemoryStore keeps users, tickets and their satellites in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]*userRecord
	byEmail     map[string]string
	tickets     map[string]*ticket.Ticket
	order       []string // ticket ids, oldest first
	comments    map[string][]ticket.Comment
	logs        map[string][]ticket.Log
	attachments map[string][]ticket.Attachment
	revoked     map[string]time.Time // refresh token jti -> expiry
	now         func() time.Time
}

var _ Repository = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]*userRecord),
		byEmail:     make(map[string]string),
		tickets:     make(map[string]*ticket.Ticket),
		comments:    make(map[string][]ticket.Comment),
		logs:        make(map[string][]ticket.Log),
		attachments: make(map[string][]ticket.Attachment),
		revoked:     make(map[string]time.Time),
		now:         time.Now,
	}
}

// ==================== Users ====================

func (s *MemoryStore) CreateUser(_ context.Context, name, email, password string, role user.Role) (*user.User, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return nil, xerrors.ErrConflict
	}
	now := s.now().UTC()
	rec := &userRecord{
		User: user.User{
			ID:        uuid.NewString(),
			Email:     email,
			Name:      name,
			Role:      role,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: hash,
	}
	s.users[rec.ID] = rec
	s.byEmail[email] = rec.ID

	u := rec.User
	return &u, nil
}

func (s *MemoryStore) Authenticate(_ context.Context, email, password string) (*user.User, error) {
	s.mu.RLock()
	id, ok := s.byEmail[normalizeEmail(email)]
	var rec *userRecord
	if ok {
		rec = s.users[id]
	}
	s.mu.RUnlock()

	if rec == nil {
		return nil, xerrors.ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(password)); err != nil {
		return nil, xerrors.ErrUnauthorized
	}
	u := rec.User
	return &u, nil
}

func (s *MemoryStore) User(_ context.Context, id string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	u := rec.User
	return &u, nil
}

func (s *MemoryStore) ListUsers(_ context.Context, filters user.Filters) ([]user.User, error) {
	search := strings.ToLower(filters.Search)

	s.mu.RLock()
	out := make([]user.User, 0, len(s.users))
	for _, rec := range s.users {
		if filters.Role != "" && rec.Role != filters.Role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(rec.Name), search) && !strings.Contains(rec.Email, search) {
			continue
		}
		out = append(out, rec.User)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, id string, fn func(u *user.User)) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	fn(&rec.User)
	rec.UpdatedAt = s.now().UTC()
	u := rec.User
	return &u, nil
}

func (s *MemoryStore) ChangePassword(_ context.Context, id, current, next string) error {
	s.mu.RLock()
	rec, ok := s.users[id]
	var hash []byte
	if ok {
		hash = rec.passwordHash
	}
	s.mu.RUnlock()
	if !ok {
		return xerrors.ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(current)); err != nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "current password is incorrect")
	}
	newHash, err := hashPassword(next)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec.passwordHash = newHash
	rec.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	delete(s.byEmail, rec.Email)
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) RevokeRefresh(_ context.Context, jti string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[jti] = expires
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[jti]
	return ok, nil
}

func (s *MemoryStore) userRefLocked(id string) *ticket.UserRef {
	rec, ok := s.users[id]
	if !ok {
		return nil
	}
	return &ticket.UserRef{ID: rec.ID, Name: rec.Name, Email: rec.Email, Avatar: rec.Avatar}
}

// ==================== Tickets ====================

func (s *MemoryStore) CreateTicket(_ context.Context, t ticket.Ticket) (*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	t = withTicketDefaults(t)
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.CreatedBy = s.userRefLocked(t.CreatedByID)

	s.tickets[t.ID] = &t
	s.order = append(s.order, t.ID)
	s.appendLogLocked(t.ID, t.CreatedByID, actionCreated, "", string(t.Status))

	out := t
	return &out, nil
}

func (s *MemoryStore) Ticket(_ context.Context, id string) (*ticket.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	out := *t
	out.Attachments = append([]ticket.Attachment(nil), s.attachments[id]...)
	return &out, nil
}

func (s *MemoryStore) ListTickets(_ context.Context, f TicketFilter) ([]ticket.Ticket, int, error) {
	f = f.normalized()
	search := strings.ToLower(f.Search)

	s.mu.RLock()
	matched := make([]ticket.Ticket, 0, len(s.tickets))
	for i := len(s.order) - 1; i >= 0; i-- {
		t := s.tickets[s.order[i]]
		switch {
		case f.Status != "" && t.Status != f.Status,
			f.Priority != "" && t.Priority != f.Priority,
			f.Category != "" && t.Category != f.Category,
			f.AssignedToID != "" && t.AssignedToID != f.AssignedToID:
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		matched = append(matched, *t)
	}
	s.mu.RUnlock()

	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start >= total {
		return []ticket.Ticket{}, total, nil
	}
	end := min(start+f.Limit, total)
	return matched[start:end], total, nil
}

func (s *MemoryStore) UpdateTicket(_ context.Context, id, editorID string, ch TicketChanges) (*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	now := s.now().UTC()

	if ch.Title != "" {
		t.Title = ch.Title
	}
	if ch.Description != "" {
		t.Description = ch.Description
	}
	if ch.Status != "" && ch.Status != t.Status {
		s.appendLogLocked(id, editorID, actionStatusChanged, string(t.Status), string(ch.Status))
		t.Status = ch.Status
		if t.Status == ticket.StatusResolved {
			t.ResolvedAt = &now
		}
	}
	if ch.Priority != "" && ch.Priority != t.Priority {
		s.appendLogLocked(id, editorID, actionPriorityChanged, string(t.Priority), string(ch.Priority))
		t.Priority = ch.Priority
	}
	t.UpdatedAt = now

	out := *t
	out.Attachments = append([]ticket.Attachment(nil), s.attachments[id]...)
	return &out, nil
}

func (s *MemoryStore) Assign(_ context.Context, id, technicianID, assignerID string) (*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	tech, ok := s.users[technicianID]
	if !ok {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "technician not found")
	}
	if !tech.IsTechnician() {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "assigned user is not a technician")
	}

	s.appendLogLocked(id, assignerID, actionAssigned, t.AssignedToID, technicianID)
	t.AssignedToID = technicianID
	t.AssignedTo = s.userRefLocked(technicianID)
	t.Status = ticket.StatusInProgress
	t.UpdatedAt = s.now().UTC()

	out := *t
	out.Attachments = append([]ticket.Attachment(nil), s.attachments[id]...)
	return &out, nil
}

func (s *MemoryStore) DeleteTicket(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[id]; !ok {
		return xerrors.ErrNotFound
	}
	delete(s.tickets, id)
	for i, tid := range s.order {
		if tid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	delete(s.comments, id)
	delete(s.logs, id)
	delete(s.attachments, id)
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (ticket.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st ticket.Stats
	for _, t := range s.tickets {
		st.Total++
		switch t.Status {
		case ticket.StatusOpen:
			st.Open++
		case ticket.StatusInProgress:
			st.InProgress++
		case ticket.StatusResolved:
			st.Resolved++
		case ticket.StatusPending:
			st.Pending++
		}
	}
	return st, nil
}

// ==================== Comments, logs, attachments ====================

func (s *MemoryStore) AddComment(_ context.Context, ticketID, userID, content string) (*ticket.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticketID]; !ok {
		return nil, xerrors.ErrNotFound
	}
	c := ticket.Comment{
		ID:        uuid.NewString(),
		Content:   content,
		TicketID:  ticketID,
		UserID:    userID,
		User:      s.userRefLocked(userID),
		CreatedAt: s.now().UTC(),
	}
	s.comments[ticketID] = append(s.comments[ticketID], c)
	return &c, nil
}

func (s *MemoryStore) Comments(_ context.Context, ticketID string) ([]ticket.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.tickets[ticketID]; !ok {
		return nil, xerrors.ErrNotFound
	}
	return append([]ticket.Comment{}, s.comments[ticketID]...), nil
}

func (s *MemoryStore) Logs(_ context.Context, ticketID string) ([]ticket.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.tickets[ticketID]; !ok {
		return nil, xerrors.ErrNotFound
	}
	return append([]ticket.Log{}, s.logs[ticketID]...), nil
}

func (s *MemoryStore) AddAttachment(_ context.Context, a ticket.Attachment) (*ticket.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[a.TicketID]; !ok {
		return nil, xerrors.ErrNotFound
	}
	a.ID = uuid.NewString()
	a.URL = attachmentURL(a.ID, a.Filename)
	a.CreatedAt = s.now().UTC()
	s.attachments[a.TicketID] = append(s.attachments[a.TicketID], a)
	return &a, nil
}

func (s *MemoryStore) Attachments(_ context.Context, ticketID string) ([]ticket.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.tickets[ticketID]; !ok {
		return nil, xerrors.ErrNotFound
	}
	return append([]ticket.Attachment{}, s.attachments[ticketID]...), nil
}

func (s *MemoryStore) appendLogLocked(ticketID, userID, action, oldValue, newValue string) {
	s.logs[ticketID] = append(s.logs[ticketID], ticket.Log{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		Action:    action,
		OldValue:  oldValue,
		NewValue:  newValue,
		UserID:    userID,
		User:      s.userRefLocked(userID),
		CreatedAt: s.now().UTC(),
	})
}
