package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	KindContractDeployed  = "contract.deployed"
	KindContractFunded    = "contract.funded"
	KindContractWithdrawn = "contract.withdrawn"
)

// Event describes a contract lifecycle change. Amounts are wei strings.
type Event struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	ContractID string            `json:"contract_id"`
	Actor      string            `json:"actor"`
	Amount     string            `json:"amount,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewEvent stamps an event with a ULID and the current time.
func NewEvent(kind, contractID, actor, amount string) Event {
	now := time.Now().UTC()
	return Event{
		ID:         ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Kind:       kind,
		ContractID: contractID,
		Actor:      actor,
		Amount:     amount,
		OccurredAt: now,
	}
}

// Notifier delivers events to downstream systems.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// LoggerNotifier writes events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the event to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"event_id", event.ID,
		"kind", event.Kind,
		"contract_id", event.ContractID,
		"actor", event.Actor,
		"amount", event.Amount,
	)
	return nil
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
