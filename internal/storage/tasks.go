package storage

import (
	"context"
	"fmt"

	"finboard/internal/core"
)

const taskColumns = `id, user_id, title, due_date, status, note, created_at, updated_at`

func scanTask(s scanner) (core.Task, error) {
	var (
		t                     core.Task
		due, created, updated string
	)
	if err := s.Scan(&t.ID, &t.UserID, &t.Title, &due, &t.Status, &t.Note, &created, &updated); err != nil {
		return t, err
	}
	var err error
	if t.DueDate, err = parseDay(due); err != nil {
		return t, fmt.Errorf("parse due_date: %w", err)
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return t, fmt.Errorf("parse updated_at: %w", err)
	}
	return t, nil
}

// ListTasks orders open work first, then by due date.
func (r *SQLiteRepository) ListTasks(ctx context.Context, userID string) ([]core.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ?
		 ORDER BY status = 'done', due_date = '', due_date, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []core.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetTask(ctx context.Context, userID, id string) (core.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND id = ?`, userID, id)
	t, err := scanTask(row)
	if err != nil {
		return t, fmt.Errorf("get task %s: %w", id, translate(err))
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTask(ctx context.Context, t core.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, formatDay(t.DueDate), string(t.Status), t.Note,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create task: %w", translate(err))
	}
	return nil
}

func (r *SQLiteRepository) UpdateTask(ctx context.Context, t core.Task) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, due_date = ?, status = ?, note = ?, updated_at = ? WHERE user_id = ? AND id = ?`,
		t.Title, formatDay(t.DueDate), string(t.Status), t.Note, formatTime(t.UpdatedAt), t.UserID, t.ID)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, translate(err))
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTask(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}
