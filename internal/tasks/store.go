package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type taskRow struct {
	ID          string     `db:"id"`
	UserID      string     `db:"user_id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	Priority    string     `db:"priority"`
	Frequency   string     `db:"frequency"`
	DueDate     *time.Time `db:"due_date"`
	Completed   bool       `db:"completed"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (r taskRow) task() Task {
	t := Task{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Priority:    Priority(r.Priority),
		Frequency:   Frequency(r.Frequency),
		Completed:   r.Completed,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		Attachments: []Attachment{},
	}
	if r.DueDate != nil {
		due := r.DueDate.UTC()
		t.DueDate = &due
	}
	return t
}

const taskColumns = `t.id, t.user_id, t.title, t.description, t.priority, t.frequency,
	t.due_date, t.completed, t.created_at, t.updated_at`

// Create inserts t with its attachments. ID and timestamps are assigned here.
func (s *Store) Create(ctx context.Context, t Task) (Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.DueDate != nil {
		due := t.DueDate.UTC()
		t.DueDate = &due
	}
	if t.Attachments == nil {
		t.Attachments = []Attachment{}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Task{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO tasks (
			id, user_id, title, description, priority, frequency,
			due_date, completed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.UserID, t.Title, t.Description, string(t.Priority), string(t.Frequency),
		t.DueDate, t.Completed, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return Task{}, fmt.Errorf("creating task: %w", err)
	}

	for i, a := range t.Attachments {
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO task_attachments (id, task_id, position, name, url, object_key, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			uuid.NewString(), t.ID, i, a.Name, a.URL, a.ObjectKey, now,
		)
		if err != nil {
			return Task{}, fmt.Errorf("attaching %q to task %s: %w", a.Name, t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Task{}, fmt.Errorf("committing task %s: %w", t.ID, err)
	}
	return t, nil
}

// Get returns the task owned by userID.
func (s *Store) Get(ctx context.Context, userID, id string) (Task, error) {
	return s.getOne(ctx, `WHERE t.id = ? AND t.user_id = ?`, id, userID)
}

// GetAny returns a task regardless of owner.
func (s *Store) GetAny(ctx context.Context, id string) (Task, error) {
	return s.getOne(ctx, `WHERE t.id = ?`, id)
}

func (s *Store) getOne(ctx context.Context, where string, args ...any) (Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+taskColumns+` FROM tasks t `+where), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("getting task: %w", err)
	}

	out := []Task{row.task()}
	if err := s.loadAttachments(ctx, out); err != nil {
		return Task{}, err
	}
	return out[0], nil
}

// List returns the user's tasks in creation order.
func (s *Store) List(ctx context.Context, userID string) ([]Task, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.user_id = ?
		ORDER BY t.created_at ASC, t.id ASC`), userID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	out := make([]Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.task())
	}
	if err := s.loadAttachments(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAll returns every task, newest first, with the owner's email.
func (s *Store) ListAll(ctx context.Context) ([]TaskWithOwner, error) {
	var rows []struct {
		taskRow
		UserEmail sql.NullString `db:"user_email"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+taskColumns+`, u.email AS user_email
		FROM tasks t
		LEFT JOIN users u ON u.id = t.user_id
		ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing all tasks: %w", err)
	}

	plain := make([]Task, 0, len(rows))
	for _, r := range rows {
		plain = append(plain, r.task())
	}
	if err := s.loadAttachments(ctx, plain); err != nil {
		return nil, err
	}

	out := make([]TaskWithOwner, 0, len(rows))
	for i, r := range rows {
		email := "Unknown"
		if r.UserEmail.Valid && r.UserEmail.String != "" {
			email = r.UserEmail.String
		}
		out = append(out, TaskWithOwner{Task: plain[i], UserEmail: email})
	}
	return out, nil
}

// Update persists the editable fields of t. Attachments are not touched.
func (s *Store) Update(ctx context.Context, t Task) (Task, error) {
	t.UpdatedAt = time.Now().UTC()
	if t.DueDate != nil {
		due := t.DueDate.UTC()
		t.DueDate = &due
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE tasks SET
			title = ?, description = ?, priority = ?, frequency = ?,
			due_date = ?, completed = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`),
		t.Title, t.Description, string(t.Priority), string(t.Frequency),
		t.DueDate, t.Completed, t.UpdatedAt,
		t.ID, t.UserID,
	)
	if err != nil {
		return Task{}, fmt.Errorf("updating task %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Task{}, ErrNotFound
	}
	return t, nil
}

// SetCompleted flips the completion flag of an owned task.
func (s *Store) SetCompleted(ctx context.Context, userID, id string, completed bool) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE tasks SET completed = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`),
		completed, time.Now().UTC(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("updating task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an owned task and returns the object keys of its attachments.
func (s *Store) Delete(ctx context.Context, userID, id string) ([]string, error) {
	return s.delete(ctx, `id = ? AND user_id = ?`, id, userID)
}

// DeleteAny removes a task regardless of owner.
func (s *Store) DeleteAny(ctx context.Context, id string) ([]string, error) {
	return s.delete(ctx, `id = ?`, id)
}

func (s *Store) delete(ctx context.Context, where string, args ...any) ([]string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.GetContext(ctx, &id, tx.Rebind(`SELECT id FROM tasks WHERE `+where), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding task: %w", err)
	}

	var keys []string
	err = tx.SelectContext(ctx, &keys, tx.Rebind(`
		SELECT object_key FROM task_attachments
		WHERE task_id = ? AND object_key <> ''
		ORDER BY position`), id)
	if err != nil {
		return nil, fmt.Errorf("listing attachments of task %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM task_attachments WHERE task_id = ?`), id); err != nil {
		return nil, fmt.Errorf("deleting attachments of task %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM tasks WHERE id = ?`), id); err != nil {
		return nil, fmt.Errorf("deleting task %s: %w", id, err)
	}

	keys, err = unreferencedKeys(ctx, tx, keys)
	if err != nil {
		return nil, fmt.Errorf("checking attachments of task %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing delete of task %s: %w", id, err)
	}
	return keys, nil
}

// unreferencedKeys drops duplicates and keys still attached to another task.
func unreferencedKeys(ctx context.Context, tx *sqlx.Tx, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return keys, nil
	}

	query, args, err := sqlx.In(`
		SELECT DISTINCT object_key FROM task_attachments
		WHERE object_key IN (?)`, keys)
	if err != nil {
		return nil, err
	}
	var shared []string
	if err := tx.SelectContext(ctx, &shared, tx.Rebind(query), args...); err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(keys))
	for _, k := range shared {
		skip[k] = true
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if skip[k] {
			continue
		}
		skip[k] = true
		out = append(out, k)
	}
	return out, nil
}

func (s *Store) loadAttachments(ctx context.Context, list []Task) error {
	if len(list) == 0 {
		return nil
	}

	ids := make([]string, len(list))
	byID := make(map[string]int, len(list))
	for i, t := range list {
		ids[i] = t.ID
		byID[t.ID] = i
	}

	query, args, err := sqlx.In(`
		SELECT task_id, name, url, object_key
		FROM task_attachments
		WHERE task_id IN (?)
		ORDER BY task_id, position`, ids)
	if err != nil {
		return fmt.Errorf("building attachments query: %w", err)
	}

	var rows []struct {
		TaskID    string `db:"task_id"`
		Name      string `db:"name"`
		URL       string `db:"url"`
		ObjectKey string `db:"object_key"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("loading attachments: %w", err)
	}

	for _, r := range rows {
		i := byID[r.TaskID]
		list[i].Attachments = append(list[i].Attachments, Attachment{
			Name:      r.Name,
			URL:       r.URL,
			ObjectKey: r.ObjectKey,
		})
	}
	return nil
}

// SortByPriority orders tasks urgent first, keeping the input order within a
// priority.
func SortByPriority(list []Task) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Priority.Rank() > list[j].Priority.Rank()
	})
}
