package repository

import (
    "context"
    "fmt"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/event-ticketing/internal/model"
)

// MemoryStore keeps events and tickets in process memory.  It backs
// STORE_BACKEND=memory and the service tests.  Issuance is serialized
// by a mutex per event; the indexes themselves are guarded by one
// RWMutex that is only held for the duration of a map access.
type MemoryStore struct {
    mu          sync.RWMutex
    nextEventID uint64
    events      map[uint64]model.Event
    tickets     map[string]*model.Ticket
    byToken     map[string]string
    byEvent     map[uint64][]string
    byHolder    map[uint64][]string

    locksMu    sync.Mutex
    eventLocks map[uint64]*sync.Mutex
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
    return &MemoryStore{
        events:     make(map[uint64]model.Event),
        tickets:    make(map[string]*model.Ticket),
        byToken:    make(map[string]string),
        byEvent:    make(map[uint64][]string),
        byHolder:   make(map[uint64][]string),
        eventLocks: make(map[uint64]*sync.Mutex),
    }
}

func (s *MemoryStore) eventLock(id uint64) *sync.Mutex {
    s.locksMu.Lock()
    defer s.locksMu.Unlock()
    l, ok := s.eventLocks[id]
    if !ok {
        l = &sync.Mutex{}
        s.eventLocks[id] = l
    }
    return l
}

// CreateEvent assigns the next ID and stores the event.
func (s *MemoryStore) CreateEvent(ctx context.Context, e model.Event) (model.Event, error) {
    if err := ctx.Err(); err != nil {
        return model.Event{}, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    s.nextEventID++
    e.ID = s.nextEventID
    s.events[e.ID] = e
    return e, nil
}

func (s *MemoryStore) GetEvent(ctx context.Context, id uint64) (model.Event, error) {
    if err := ctx.Err(); err != nil {
        return model.Event{}, err
    }
    s.mu.RLock()
    defer s.mu.RUnlock()
    e, ok := s.events[id]
    if !ok {
        return model.Event{}, ErrEventNotFound
    }
    return e, nil
}

func (s *MemoryStore) ListEventsByOrganizer(ctx context.Context, organizerID uint64) ([]model.Event, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.RLock()
    out := make([]model.Event, 0)
    for _, e := range s.events {
        if e.OrganizerID == organizerID {
            out = append(out, e)
        }
    }
    s.mu.RUnlock()
    sort.Slice(out, func(i, j int) bool {
        if !out[i].StartsAt.Equal(out[j].StartsAt) {
            return out[i].StartsAt.Before(out[j].StartsAt)
        }
        return out[i].ID < out[j].ID
    })
    return out, nil
}

// IssueIfCapacityAvailable holds the event's mutex across the count
// and the insert.  Cancellation only lowers the active count, so it
// does not need the event mutex.
func (s *MemoryStore) IssueIfCapacityAvailable(ctx context.Context, eventID uint64, tickets []model.Ticket) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    l := s.eventLock(eventID)
    l.Lock()
    defer l.Unlock()

    s.mu.RLock()
    ev, ok := s.events[eventID]
    active := 0
    for _, id := range s.byEvent[eventID] {
        if s.tickets[id].Status.HoldsCapacity() {
            active++
        }
    }
    s.mu.RUnlock()
    if !ok {
        return ErrEventNotFound
    }
    if ev.Capacity-active < len(tickets) {
        return ErrCapacityExceeded
    }

    s.mu.Lock()
    defer s.mu.Unlock()
    seen := make(map[string]struct{}, len(tickets))
    for _, t := range tickets {
        if _, dup := s.byToken[t.ValidationToken]; dup {
            return ErrDuplicateToken
        }
        if _, dup := s.tickets[t.ID]; dup {
            return ErrDuplicateToken
        }
        if _, dup := seen[t.ValidationToken]; dup {
            return ErrDuplicateToken
        }
        seen[t.ValidationToken] = struct{}{}
    }
    for _, t := range tickets {
        t := t
        t.EventID = eventID
        s.tickets[t.ID] = &t
        s.byToken[t.ValidationToken] = t.ID
        s.byEvent[eventID] = append(s.byEvent[eventID], t.ID)
        s.byHolder[t.HolderID] = append(s.byHolder[t.HolderID], t.ID)
    }
    return nil
}

func (s *MemoryStore) GetTicket(ctx context.Context, id string) (model.Ticket, error) {
    if err := ctx.Err(); err != nil {
        return model.Ticket{}, err
    }
    s.mu.RLock()
    defer s.mu.RUnlock()
    t, ok := s.tickets[id]
    if !ok {
        return model.Ticket{}, ErrTicketNotFound
    }
    return cloneTicket(t), nil
}

func (s *MemoryStore) GetTicketByToken(ctx context.Context, token string) (model.Ticket, error) {
    if err := ctx.Err(); err != nil {
        return model.Ticket{}, err
    }
    s.mu.RLock()
    defer s.mu.RUnlock()
    id, ok := s.byToken[token]
    if !ok {
        return model.Ticket{}, ErrTicketNotFound
    }
    return cloneTicket(s.tickets[id]), nil
}

// ListTicketsByEvent returns tickets in issue order.
func (s *MemoryStore) ListTicketsByEvent(ctx context.Context, eventID uint64) ([]model.Ticket, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.RLock()
    defer s.mu.RUnlock()
    ids := s.byEvent[eventID]
    out := make([]model.Ticket, 0, len(ids))
    for _, id := range ids {
        out = append(out, cloneTicket(s.tickets[id]))
    }
    return out, nil
}

// ListTicketsByHolder returns the holder's tickets, newest first.
func (s *MemoryStore) ListTicketsByHolder(ctx context.Context, holderID uint64) ([]model.Ticket, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.RLock()
    ids := s.byHolder[holderID]
    out := make([]model.Ticket, 0, len(ids))
    for i := len(ids) - 1; i >= 0; i-- {
        out = append(out, cloneTicket(s.tickets[ids[i]]))
    }
    s.mu.RUnlock()
    sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
    return out, nil
}

func (s *MemoryStore) CountTicketsByStatus(ctx context.Context, eventID uint64) (map[model.TicketStatus]int, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make(map[model.TicketStatus]int)
    for _, id := range s.byEvent[eventID] {
        out[s.tickets[id].Status]++
    }
    return out, nil
}

func (s *MemoryStore) CompareAndSwapStatus(ctx context.Context, id string, from, to model.TicketStatus) (model.Ticket, bool, error) {
    if to == model.TicketUsed {
        return model.Ticket{}, false, fmt.Errorf("status %q is only reachable by scanning", to)
    }
    if err := ctx.Err(); err != nil {
        return model.Ticket{}, false, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    t, ok := s.tickets[id]
    if !ok {
        return model.Ticket{}, false, ErrTicketNotFound
    }
    if t.Status != from {
        return cloneTicket(t), false, nil
    }
    t.Status = to
    return cloneTicket(t), true, nil
}

func (s *MemoryStore) MarkScanned(ctx context.Context, id string, at time.Time, by uint64) (model.Ticket, bool, error) {
    if err := ctx.Err(); err != nil {
        return model.Ticket{}, false, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    t, ok := s.tickets[id]
    if !ok {
        return model.Ticket{}, false, ErrTicketNotFound
    }
    if t.Status != model.TicketPaid || !t.IsValid || t.ScannedAt != nil {
        return cloneTicket(t), false, nil
    }
    at = at.UTC()
    t.Status = model.TicketUsed
    t.IsValid = false
    t.ScannedAt = &at
    t.ScannedBy = &by
    return cloneTicket(t), true, nil
}

// cloneTicket copies t including its pointer fields so callers can
// never write through to the stored record.
func cloneTicket(t *model.Ticket) model.Ticket {
    c := *t
    if t.ScannedAt != nil {
        at := *t.ScannedAt
        c.ScannedAt = &at
    }
    if t.ScannedBy != nil {
        by := *t.ScannedBy
        c.ScannedBy = &by
    }
    return c
}
