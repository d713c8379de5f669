package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Event represents a ticketed happening owned by an organizer.
// Capacity bounds the number of non-cancelled tickets that may
// exist for the event at any moment.  Events are immutable once
// tickets exist against them; there is no resize path.
//
// Fields:
//  ID          – primary key identifier.
//  OrganizerID – principal that owns the event and may scan its tickets.
//  Name        – display name.
//  Capacity    – maximum outstanding tickets (pending, paid or used).
//  StartsAt    – when the event begins.
//  EndsAt      – when the event ends (never before StartsAt).
//  Price       – unit price used for revenue reporting.
//  CreatedAt   – creation timestamp.
type Event struct {
    ID          uint64          // events.id
    OrganizerID uint64          // events.organizer_id
    Name        string          // events.name
    Capacity    int             // events.capacity
    StartsAt    time.Time       // events.starts_at
    EndsAt      time.Time       // events.ends_at
    Price       decimal.Decimal // events.price
    CreatedAt   time.Time       // events.created_at
}
