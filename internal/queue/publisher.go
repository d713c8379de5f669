package queue

import (
    "context"
    "encoding/json"
    "log/slog"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/event-ticketing/internal/model"
)

const publishTimeout = 5 * time.Second

// Publisher sends ticket lifecycle events to RabbitMQ.  It satisfies
// service.Notifier: every publish runs in the background and failures
// are logged, never returned, so a broker outage cannot fail a booking
// or a scan.  Call Close on shutdown to wait for in-flight messages.
type Publisher struct {
    url  string
    log  *slog.Logger
    wg   sync.WaitGroup
    send func(ctx context.Context, queue string, body []byte) error
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *slog.Logger) *Publisher {
    if log == nil {
        log = slog.Default()
    }
    p := &Publisher{url: url, log: log}
    p.send = p.dialAndPublish
    return p
}

func (p *Publisher) TicketsIssued(_ context.Context, ev model.Event, tickets []model.Ticket) {
    if len(tickets) == 0 {
        return
    }
    ids := make([]string, len(tickets))
    for i, t := range tickets {
        ids[i] = t.ID
    }
    p.publish(TicketIssuedQueue, TicketIssuedEvent{
        EventID:   ev.ID,
        EventName: ev.Name,
        HolderID:  tickets[0].HolderID,
        TicketIDs: ids,
        Status:    string(tickets[0].Status),
        IssuedAt:  tickets[0].CreatedAt.UTC().Format(time.RFC3339),
    })
}

func (p *Publisher) TicketCancelled(_ context.Context, t model.Ticket, by model.Principal) {
    p.publish(TicketCancelledQueue, TicketCancelledEvent{
        TicketID:    t.ID,
        EventID:     t.EventID,
        HolderID:    t.HolderID,
        CancelledBy: by.ID,
        CancelledAt: time.Now().UTC().Format(time.RFC3339),
    })
}

func (p *Publisher) TicketScanned(_ context.Context, t model.Ticket) {
    ev := TicketScannedEvent{TicketID: t.ID, EventID: t.EventID, HolderID: t.HolderID}
    if t.ScannedBy != nil {
        ev.ScannedBy = *t.ScannedBy
    }
    if t.ScannedAt != nil {
        ev.ScannedAt = t.ScannedAt.UTC().Format(time.RFC3339Nano)
    }
    p.publish(TicketScannedQueue, ev)
}

// Close blocks until every background publish has finished.
func (p *Publisher) Close() {
    p.wg.Wait()
}

// publish marshals v and sends it without holding up the caller.  The
// request context is not used since it ends with the response.
func (p *Publisher) publish(queue string, v any) {
    body, err := json.Marshal(v)
    if err != nil {
        p.log.Error("rabbitmq: marshal event failed", "queue", queue, "err", err)
        return
    }
    p.wg.Add(1)
    go func() {
        defer p.wg.Done()
        ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
        defer cancel()
        if err := p.send(ctx, queue, body); err != nil {
            p.log.Warn("rabbitmq: publish failed", "queue", queue, "err", err)
        }
    }()
}

// dialAndPublish opens a connection per message.  Ticket events are
// low volume, so a pooled channel is not worth the reconnect logic.
func (p *Publisher) dialAndPublish(ctx context.Context, queue string, body []byte) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if err := declareQueue(ch, queue); err != nil {
        return err
    }

    return ch.PublishWithContext(ctx,
        "",    // default exchange
        queue, // routing key = queue name
        false, // mandatory
        false, // immediate
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent,
            Timestamp:    time.Now().UTC(),
            Body:         body,
        },
    )
}

func declareQueue(ch *amqp.Channel, name string) error {
    _, err := ch.QueueDeclare(
        name,
        true,  // durable
        false, // autoDelete
        false, // exclusive
        false, // noWait
        nil,   // args
    )
    return err
}
