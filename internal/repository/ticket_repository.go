package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/event-ticketing/internal/model"
)

// mysqlDuplicateEntry is the server error number for a violated
// UNIQUE or PRIMARY KEY constraint.
const mysqlDuplicateEntry = 1062

// TicketRepo persists tickets in the tickets table.  Rows are never
// deleted; cancellation and redemption are conditional UPDATEs so that
// each transition happens at most once even under concurrent callers.
type TicketRepo struct {
    db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, event_id, holder_id, validation_token, scan_url, status, is_valid, scanned_at, scanned_by, created_at`

// IssueIfCapacityAvailable inserts all tickets in one transaction.  The
// event row is locked with SELECT ... FOR UPDATE first, which serializes
// concurrent bookings of the same event while leaving other events
// untouched.  Nothing is written when ErrCapacityExceeded or
// ErrEventNotFound is returned.
func (r *TicketRepo) IssueIfCapacityAvailable(ctx context.Context, eventID uint64, tickets []model.Ticket) (err error) {
    if len(tickets) == 0 {
        return nil
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() {
        if err != nil {
            _ = tx.Rollback()
        } else {
            err = tx.Commit()
        }
    }()

    var capacity int
    err = tx.QueryRowContext(ctx, `SELECT capacity FROM events WHERE id = ? FOR UPDATE`, eventID).Scan(&capacity)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return ErrEventNotFound
        }
        return err
    }
    var active int
    err = tx.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM tickets WHERE event_id = ? AND status IN ('pending', 'paid', 'used')`,
        eventID).Scan(&active)
    if err != nil {
        return err
    }
    if capacity-active < len(tickets) {
        return ErrCapacityExceeded
    }

    var sb strings.Builder
    sb.WriteString(`INSERT INTO tickets (id, event_id, holder_id, validation_token, scan_url, status, is_valid, created_at) VALUES `)
    args := make([]any, 0, len(tickets)*8)
    for i, t := range tickets {
        if i > 0 {
            sb.WriteString(",")
        }
        sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
        args = append(args, t.ID, eventID, t.HolderID, t.ValidationToken, t.ScanURL, string(t.Status), t.IsValid, t.CreatedAt.UTC())
    }
    if _, err = tx.ExecContext(ctx, sb.String(), args...); err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
            return ErrDuplicateToken
        }
        return err
    }
    return nil
}

// GetTicket returns the ticket with the given ID or ErrTicketNotFound.
func (r *TicketRepo) GetTicket(ctx context.Context, id string) (model.Ticket, error) {
    return r.getOne(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
}

// GetTicketByToken looks a ticket up by its validation token.
func (r *TicketRepo) GetTicketByToken(ctx context.Context, token string) (model.Ticket, error) {
    return r.getOne(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE validation_token = ?`, token)
}

func (r *TicketRepo) getOne(ctx context.Context, q string, arg any) (model.Ticket, error) {
    t, err := scanTicket(r.db.QueryRowContext(ctx, q, arg))
    if errors.Is(err, sql.ErrNoRows) {
        return model.Ticket{}, ErrTicketNotFound
    }
    return t, err
}

// ListTicketsByEvent returns every ticket of the event in issue order.
func (r *TicketRepo) ListTicketsByEvent(ctx context.Context, eventID uint64) ([]model.Ticket, error) {
    return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE event_id = ? ORDER BY created_at, id`, eventID)
}

// ListTicketsByHolder returns the holder's tickets, newest first.
func (r *TicketRepo) ListTicketsByHolder(ctx context.Context, holderID uint64) ([]model.Ticket, error) {
    return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE holder_id = ? ORDER BY created_at DESC, id`, holderID)
}

func (r *TicketRepo) list(ctx context.Context, q string, arg any) ([]model.Ticket, error) {
    rows, err := r.db.QueryContext(ctx, q, arg)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Ticket, 0)
    for rows.Next() {
        t, err := scanTicket(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, t)
    }
    return out, rows.Err()
}

// CountTicketsByStatus groups the event's tickets by status.  Statuses
// with no tickets are absent from the map.
func (r *TicketRepo) CountTicketsByStatus(ctx context.Context, eventID uint64) (map[model.TicketStatus]int, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT status, COUNT(*) FROM tickets WHERE event_id = ? GROUP BY status`, eventID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make(map[model.TicketStatus]int)
    for rows.Next() {
        var status string
        var n int
        if err := rows.Scan(&status, &n); err != nil {
            return nil, err
        }
        out[model.TicketStatus(status)] = n
    }
    return out, rows.Err()
}

// CompareAndSwapStatus updates the status only while it still equals
// from.  The row is re-read afterwards so the caller always sees the
// current record, whether or not the swap applied.
func (r *TicketRepo) CompareAndSwapStatus(ctx context.Context, id string, from, to model.TicketStatus) (model.Ticket, bool, error) {
    if to == model.TicketUsed {
        return model.Ticket{}, false, fmt.Errorf("status %q is only reachable by scanning", to)
    }
    res, err := r.db.ExecContext(ctx,
        `UPDATE tickets SET status = ? WHERE id = ? AND status = ?`, string(to), id, string(from))
    if err != nil {
        return model.Ticket{}, false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return model.Ticket{}, false, err
    }
    t, err := r.GetTicket(ctx, id)
    if err != nil {
        return model.Ticket{}, false, err
    }
    return t, n == 1, nil
}

// MarkScanned redeems a paid, valid, unscanned ticket in one UPDATE.
// The WHERE clause is the whole precondition, so two racing scans can
// never both affect the row.
func (r *TicketRepo) MarkScanned(ctx context.Context, id string, at time.Time, by uint64) (model.Ticket, bool, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE tickets
            SET status = 'used', is_valid = FALSE, scanned_at = ?, scanned_by = ?
          WHERE id = ? AND status = 'paid' AND is_valid = TRUE AND scanned_at IS NULL`,
        at.UTC(), by, id)
    if err != nil {
        return model.Ticket{}, false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return model.Ticket{}, false, err
    }
    t, err := r.GetTicket(ctx, id)
    if err != nil {
        return model.Ticket{}, false, err
    }
    return t, n == 1, nil
}

func scanTicket(s rowScanner) (model.Ticket, error) {
    var (
        t         model.Ticket
        status    string
        scannedAt sql.NullTime
        scannedBy sql.NullInt64
    )
    err := s.Scan(&t.ID, &t.EventID, &t.HolderID, &t.ValidationToken, &t.ScanURL,
        &status, &t.IsValid, &scannedAt, &scannedBy, &t.CreatedAt)
    if err != nil {
        return model.Ticket{}, err
    }
    t.Status = model.TicketStatus(status)
    t.CreatedAt = t.CreatedAt.UTC()
    if scannedAt.Valid {
        at := scannedAt.Time.UTC()
        t.ScannedAt = &at
    }
    if scannedBy.Valid {
        by := uint64(scannedBy.Int64)
        t.ScannedBy = &by
    }
    return t, nil
}
