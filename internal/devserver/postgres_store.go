package devserver

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"ticketsync/internal/domain/ticket"
	"ticketsync/internal/domain/user"
	xerrors "ticketsync/internal/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps the devserver's data in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ Repository = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// Migrate creates any missing tables. It is safe to run on every start.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// ==================== Users ====================

const userColumns = `id, email, name, role, avatar, phone, department, created_at, updated_at`

func scanUser(row pgx.Row, extra ...any) (*user.User, error) {
	var u user.User
	dest := append([]any{
		&u.ID, &u.Email, &u.Name, &u.Role, &u.Avatar, &u.Phone, &u.Department, &u.CreatedAt, &u.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, name, email, password string, role user.Role) (*user.User, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO users (id, email, name, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query,
		uuid.NewString(), normalizeEmail(email), name, role, hash, s.now().UTC(),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, xerrors.ErrConflict
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	query := `SELECT ` + userColumns + `, password_hash FROM users WHERE email = $1`

	var hash []byte
	u, err := scanUser(s.pool.QueryRow(ctx, query, normalizeEmail(email)), &hash)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, xerrors.ErrUnauthorized
	}
	return u, nil
}

func (s *PostgresStore) User(ctx context.Context, id string) (*user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, err
}

func (s *PostgresStore) ListUsers(ctx context.Context, filters user.Filters) ([]user.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1::text = '' OR role = $1::text)
		  AND ($2::text = '' OR LOWER(name) LIKE '%' || $2::text || '%' OR email LIKE '%' || $2::text || '%')
		ORDER BY email`

	rows, err := s.pool.Query(ctx, query, string(filters.Role), strings.ToLower(filters.Search))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []user.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) UpdateUser(ctx context.Context, id string, fn func(u *user.User)) (*user.User, error) {
	var out *user.User
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		u, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		fn(u)
		u.UpdatedAt = s.now().UTC()

		_, err = tx.Exec(ctx, `
			UPDATE users
			SET name = $2, role = $3, avatar = $4, phone = $5, department = $6, updated_at = $7
			WHERE id = $1`,
			id, u.Name, u.Role, u.Avatar, u.Phone, u.Department, u.UpdatedAt,
		)
		out = u
		return err
	})
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ChangePassword(ctx context.Context, id, current, next string) error {
	var hash []byte
	err := s.pool.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1`, id).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(current)); err != nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "current password is incorrect")
	}

	newHash, err := hashPassword(next)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, newHash, s.now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RevokeRefresh(ctx context.Context, jti string, expires time.Time) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM revoked_tokens WHERE expires_at < $1`, s.now().UTC())
	batch.Queue(`
		INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
		ON CONFLICT (jti) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		jti, expires.UTC(),
	)
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti,
	).Scan(&revoked); err != nil {
		return false, fmt.Errorf("failed to check refresh token: %w", err)
	}
	return revoked, nil
}

// ==================== Tickets ====================

const ticketSelect = `
	SELECT t.id, t.title, t.description, t.status, t.priority, t.category, t.location,
	       t.created_by_id, COALESCE(t.assigned_to_id, ''), t.due_date, t.resolved_at,
	       t.created_at, t.updated_at,
	       cu.name, cu.email, cu.avatar,
	       au.name, au.email, au.avatar
	FROM tickets t
	LEFT JOIN users cu ON cu.id = t.created_by_id
	LEFT JOIN users au ON au.id = t.assigned_to_id`

func scanTicket(row pgx.Row) (*ticket.Ticket, error) {
	var (
		t                           ticket.Ticket
		creatorName, creatorEmail   *string
		creatorAvatar               *string
		assigneeName, assigneeEmail *string
		assigneeAvatar              *string
	)
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Category, &t.Location,
		&t.CreatedByID, &t.AssignedToID, &t.DueDate, &t.ResolvedAt,
		&t.CreatedAt, &t.UpdatedAt,
		&creatorName, &creatorEmail, &creatorAvatar,
		&assigneeName, &assigneeEmail, &assigneeAvatar,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.CreatedBy = userRef(t.CreatedByID, creatorName, creatorEmail, creatorAvatar)
	t.AssignedTo = userRef(t.AssignedToID, assigneeName, assigneeEmail, assigneeAvatar)
	return &t, nil
}

func userRef(id string, name, email, avatar *string) *ticket.UserRef {
	if id == "" || name == nil {
		return nil
	}
	ref := &ticket.UserRef{ID: id, Name: *name}
	if email != nil {
		ref.Email = *email
	}
	if avatar != nil {
		ref.Avatar = *avatar
	}
	return ref
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *PostgresStore) CreateTicket(ctx context.Context, t ticket.Ticket) (*ticket.Ticket, error) {
	t = withTicketDefaults(t)
	t.ID = uuid.NewString()
	now := s.now().UTC()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO tickets (id, title, description, status, priority, category, location,
			                     created_by_id, assigned_to_id, due_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
			t.ID, t.Title, t.Description, t.Status, t.Priority, t.Category, t.Location,
			t.CreatedByID, nullable(t.AssignedToID), t.DueDate, now,
		); err != nil {
			return err
		}
		return s.insertLog(ctx, tx, t.ID, t.CreatedByID, actionCreated, "", string(t.Status))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}
	return s.Ticket(ctx, t.ID)
}

func (s *PostgresStore) Ticket(ctx context.Context, id string) (*ticket.Ticket, error) {
	t, err := scanTicket(s.pool.QueryRow(ctx, ticketSelect+` WHERE t.id = $1`, id))
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find ticket: %w", err)
	}
	if t.Attachments, err = s.attachments(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *PostgresStore) ListTickets(ctx context.Context, f TicketFilter) ([]ticket.Ticket, int, error) {
	f = f.normalized()

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("t.status = $%d", f.Status)
	}
	if f.Priority != "" {
		add("t.priority = $%d", f.Priority)
	}
	if f.Category != "" {
		add("t.category = $%d", f.Category)
	}
	if f.AssignedToID != "" {
		add("t.assigned_to_id = $%d", f.AssignedToID)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(t.title ILIKE $%d OR t.description ILIKE $%d)", n, n))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets t`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	query := ticketSelect + where +
		fmt.Sprintf(` ORDER BY t.created_at DESC, t.seq DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	tickets := []ticket.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, total, nil
}

func (s *PostgresStore) UpdateTicket(ctx context.Context, id, editorID string, ch TicketChanges) (*ticket.Ticket, error) {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var (
			title, description string
			status             ticket.Status
			priority           ticket.Priority
			resolvedAt         *time.Time
		)
		err := tx.QueryRow(ctx,
			`SELECT title, description, status, priority, resolved_at FROM tickets WHERE id = $1 FOR UPDATE`, id,
		).Scan(&title, &description, &status, &priority, &resolvedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return xerrors.ErrNotFound
		}
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if ch.Title != "" {
			title = ch.Title
		}
		if ch.Description != "" {
			description = ch.Description
		}
		if ch.Status != "" && ch.Status != status {
			if err := s.insertLog(ctx, tx, id, editorID, actionStatusChanged, string(status), string(ch.Status)); err != nil {
				return err
			}
			status = ch.Status
			if status == ticket.StatusResolved {
				resolvedAt = &now
			}
		}
		if ch.Priority != "" && ch.Priority != priority {
			if err := s.insertLog(ctx, tx, id, editorID, actionPriorityChanged, string(priority), string(ch.Priority)); err != nil {
				return err
			}
			priority = ch.Priority
		}

		_, err = tx.Exec(ctx, `
			UPDATE tickets
			SET title = $2, description = $3, status = $4, priority = $5, resolved_at = $6, updated_at = $7
			WHERE id = $1`,
			id, title, description, status, priority, resolvedAt, now,
		)
		return err
	})
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update ticket: %w", err)
	}
	return s.Ticket(ctx, id)
}

func (s *PostgresStore) Assign(ctx context.Context, id, technicianID, assignerID string) (*ticket.Ticket, error) {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var previous string
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(assigned_to_id, '') FROM tickets WHERE id = $1 FOR UPDATE`, id,
		).Scan(&previous)
		if errors.Is(err, pgx.ErrNoRows) {
			return xerrors.ErrNotFound
		}
		if err != nil {
			return err
		}

		tech := user.User{ID: technicianID}
		err = tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, technicianID).Scan(&tech.Role)
		if errors.Is(err, pgx.ErrNoRows) {
			return xerrors.Wrap(xerrors.ErrInvalidInput, "technician not found")
		}
		if err != nil {
			return err
		}
		if !tech.IsTechnician() {
			return xerrors.Wrap(xerrors.ErrInvalidInput, "assigned user is not a technician")
		}

		if err := s.insertLog(ctx, tx, id, assignerID, actionAssigned, previous, technicianID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE tickets SET assigned_to_id = $2, status = $3, updated_at = $4 WHERE id = $1`,
			id, technicianID, ticket.StatusInProgress, s.now().UTC(),
		)
		return err
	})
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) || errors.Is(err, xerrors.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to assign ticket: %w", err)
	}
	return s.Ticket(ctx, id)
}

func (s *PostgresStore) DeleteTicket(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (ticket.Stats, error) {
	var st ticket.Stats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'OPEN'),
		       COUNT(*) FILTER (WHERE status = 'IN_PROGRESS'),
		       COUNT(*) FILTER (WHERE status = 'RESOLVED'),
		       COUNT(*) FILTER (WHERE status = 'PENDING')
		FROM tickets`,
	).Scan(&st.Total, &st.Open, &st.InProgress, &st.Resolved, &st.Pending)
	if err != nil {
		return ticket.Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	return st, nil
}

// ==================== Comments, logs, attachments ====================

func (s *PostgresStore) ticketExists(ctx context.Context, id string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to find ticket: %w", err)
	}
	if !exists {
		return xerrors.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) insertLog(ctx context.Context, db execer, ticketID, userID, action, oldValue, newValue string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO ticket_logs (id, ticket_id, user_id, action, old_value, new_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), ticketID, userID, action, oldValue, newValue, s.now().UTC(),
	)
	return err
}

func (s *PostgresStore) AddComment(ctx context.Context, ticketID, userID, content string) (*ticket.Comment, error) {
	if err := s.ticketExists(ctx, ticketID); err != nil {
		return nil, err
	}
	c := ticket.Comment{
		ID:        uuid.NewString(),
		Content:   content,
		TicketID:  ticketID,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO ticket_comments (id, ticket_id, user_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.TicketID, c.UserID, c.Content, c.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	if u, err := s.User(ctx, userID); err == nil {
		c.User = &ticket.UserRef{ID: u.ID, Name: u.Name, Email: u.Email, Avatar: u.Avatar}
	}
	return &c, nil
}

func (s *PostgresStore) Comments(ctx context.Context, ticketID string) ([]ticket.Comment, error) {
	if err := s.ticketExists(ctx, ticketID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.content, c.ticket_id, c.user_id, c.created_at, u.name, u.email, u.avatar
		FROM ticket_comments c
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.ticket_id = $1
		ORDER BY c.created_at, c.seq`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []ticket.Comment{}
	for rows.Next() {
		var (
			c                  ticket.Comment
			name, email, image *string
		)
		if err := rows.Scan(&c.ID, &c.Content, &c.TicketID, &c.UserID, &c.CreatedAt, &name, &email, &image); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.User = userRef(c.UserID, name, email, image)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *PostgresStore) Logs(ctx context.Context, ticketID string) ([]ticket.Log, error) {
	if err := s.ticketExists(ctx, ticketID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT l.id, l.ticket_id, l.action, l.old_value, l.new_value, l.user_id, l.created_at,
		       u.name, u.email, u.avatar
		FROM ticket_logs l
		LEFT JOIN users u ON u.id = l.user_id
		WHERE l.ticket_id = $1
		ORDER BY l.created_at, l.seq`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	logs := []ticket.Log{}
	for rows.Next() {
		var (
			l                  ticket.Log
			name, email, image *string
		)
		if err := rows.Scan(&l.ID, &l.TicketID, &l.Action, &l.OldValue, &l.NewValue, &l.UserID, &l.CreatedAt, &name, &email, &image); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		l.User = userRef(l.UserID, name, email, image)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *PostgresStore) AddAttachment(ctx context.Context, a ticket.Attachment) (*ticket.Attachment, error) {
	if err := s.ticketExists(ctx, a.TicketID); err != nil {
		return nil, err
	}
	a.ID = uuid.NewString()
	a.URL = attachmentURL(a.ID, a.Filename)
	a.CreatedAt = s.now().UTC()
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO ticket_attachments (id, ticket_id, filename, url, type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.TicketID, a.Filename, a.URL, a.Type, a.Size, a.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to add attachment: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) Attachments(ctx context.Context, ticketID string) ([]ticket.Attachment, error) {
	if err := s.ticketExists(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.attachments(ctx, ticketID)
}

func (s *PostgresStore) attachments(ctx context.Context, ticketID string) ([]ticket.Attachment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, filename, url, type, size, ticket_id, created_at
		FROM ticket_attachments
		WHERE ticket_id = $1
		ORDER BY created_at, seq`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	atts := []ticket.Attachment{}
	for rows.Next() {
		var a ticket.Attachment
		if err := rows.Scan(&a.ID, &a.Filename, &a.URL, &a.Type, &a.Size, &a.TicketID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		atts = append(atts, a)
	}
	return atts, rows.Err()
}
