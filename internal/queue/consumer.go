package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

const auditFileName = "tickets.log"

// AuditConsumer drains the ticket queues and appends one line per
// message to <dir>/tickets.log.  It is the durable audit trail of
// issuance, cancellation and redemption.
type AuditConsumer struct {
    url string
    dir string
    log *slog.Logger
}

func NewAuditConsumer(url, dir string, log *slog.Logger) *AuditConsumer {
    if dir == "" {
        dir = "logs"
    }
    if log == nil {
        log = slog.Default()
    }
    return &AuditConsumer{url: url, dir: dir, log: log}
}

// Run connects to RabbitMQ, declares the ticket queues (durable), and
// consumes until ctx is cancelled.  Broker failures trigger a reconnect
// with exponential backoff; a message that cannot be handled is
// rejected without requeue so the consumer keeps going.
func (c *AuditConsumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn("audit-consumer: failed to dial broker", "err", err, "retry_in", backoff)
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn("audit-consumer: consume loop ended; reconnecting", "err", err)
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn("audit-consumer: set QoS failed", "err", err)
    }

    deliveries := make(chan amqp.Delivery)
    done := make(chan struct{})
    defer close(done)
    queues := []string{TicketIssuedQueue, TicketCancelledQueue, TicketScannedQueue}
    for _, q := range queues {
        if err := declareQueue(ch, q); err != nil {
            return fmt.Errorf("queue declare %s: %w", q, err)
        }
        msgs, err := ch.Consume(q, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", q, err)
        }
        go forward(ctx, done, msgs, deliveries)
    }

    closed := ch.NotifyClose(make(chan *amqp.Error, 1))
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case amqpErr := <-closed:
            if amqpErr == nil {
                return errors.New("channel closed")
            }
            return amqpErr
        case d := <-deliveries:
            if err := c.handleMessage(d.RoutingKey, d.Body); err != nil {
                c.log.Error("audit-consumer: handle message failed", "queue", d.RoutingKey, "err", err)
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// forward relays msgs into out until msgs drains or the loop that owns
// out has returned.
func forward(ctx context.Context, done <-chan struct{}, msgs <-chan amqp.Delivery, out chan<- amqp.Delivery) {
    for d := range msgs {
        select {
        case out <- d:
        case <-done:
            return
        case <-ctx.Done():
            return
        }
    }
}

func (c *AuditConsumer) handleMessage(queue string, body []byte) error {
    line, err := formatAuditLine(queue, body)
    if err != nil {
        return err
    }
    if err := os.MkdirAll(c.dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", c.dir, err)
    }
    f, err := os.OpenFile(filepath.Join(c.dir, auditFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// formatAuditLine renders a message as a single human-friendly line.
func formatAuditLine(queue string, body []byte) (string, error) {
    switch queue {
    case TicketIssuedQueue:
        var ev TicketIssuedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal %s: %w", queue, err)
        }
        return fmt.Sprintf("[%s] Tickets issued | event_id=%d | event=%q | holder_id=%d | status=%s | count=%d | tickets=[%s]\n",
            ev.IssuedAt, ev.EventID, ev.EventName, ev.HolderID, ev.Status, len(ev.TicketIDs), strings.Join(ev.TicketIDs, ",")), nil
    case TicketCancelledQueue:
        var ev TicketCancelledEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal %s: %w", queue, err)
        }
        return fmt.Sprintf("[%s] Ticket cancelled | ticket_id=%s | event_id=%d | holder_id=%d | by=%d\n",
            ev.CancelledAt, ev.TicketID, ev.EventID, ev.HolderID, ev.CancelledBy), nil
    case TicketScannedQueue:
        var ev TicketScannedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal %s: %w", queue, err)
        }
        return fmt.Sprintf("[%s] Ticket scanned | ticket_id=%s | event_id=%d | holder_id=%d | scanned_by=%d\n",
            ev.ScannedAt, ev.TicketID, ev.EventID, ev.HolderID, ev.ScannedBy), nil
    }
    return "", fmt.Errorf("unknown queue %q", queue)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
