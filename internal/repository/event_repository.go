package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/event-ticketing/internal/model"
)

// EventRepo persists events in the events table.  Events are never
// updated or deleted once created; capacity is fixed for the life of
// the row.  All timestamps are stored in UTC.
type EventRepo struct {
    db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, organizer_id, name, capacity, starts_at, ends_at, price, created_at`

// CreateEvent inserts the event and returns it with the generated ID.
func (r *EventRepo) CreateEvent(ctx context.Context, e model.Event) (model.Event, error) {
    const q = `INSERT INTO events (organizer_id, name, capacity, starts_at, ends_at, price, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q,
        e.OrganizerID, e.Name, e.Capacity, e.StartsAt.UTC(), e.EndsAt.UTC(), e.Price, e.CreatedAt.UTC())
    if err != nil {
        return model.Event{}, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return model.Event{}, err
    }
    e.ID = uint64(id)
    return e, nil
}

// GetEvent returns the event with the given ID or ErrEventNotFound.
func (r *EventRepo) GetEvent(ctx context.Context, id uint64) (model.Event, error) {
    row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
    e, err := scanEvent(row)
    if errors.Is(err, sql.ErrNoRows) {
        return model.Event{}, ErrEventNotFound
    }
    return e, err
}

// ListEventsByOrganizer returns the organizer's events ordered by start
// time.  An organizer without events gets an empty slice.
func (r *EventRepo) ListEventsByOrganizer(ctx context.Context, organizerID uint64) ([]model.Event, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+eventColumns+` FROM events WHERE organizer_id = ? ORDER BY starts_at, id`, organizerID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Event, 0)
    for rows.Next() {
        e, err := scanEvent(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, e)
    }
    return out, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...any) error
}

func scanEvent(s rowScanner) (model.Event, error) {
    var e model.Event
    err := s.Scan(&e.ID, &e.OrganizerID, &e.Name, &e.Capacity, &e.StartsAt, &e.EndsAt, &e.Price, &e.CreatedAt)
    if err != nil {
        return model.Event{}, err
    }
    e.StartsAt = e.StartsAt.UTC()
    e.EndsAt = e.EndsAt.UTC()
    e.CreatedAt = e.CreatedAt.UTC()
    return e, nil
}
