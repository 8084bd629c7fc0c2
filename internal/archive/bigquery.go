// Package archive mirrors ledger events into BigQuery for analytics and
// exports history snapshots to GCS. Everything here is advisory: archive
// failures are retried by the job queue and never fail a user request.
package archive

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-assistant/internal/store"
)

const eventsTable = "events"

// EventRow is the BigQuery row shape for an archived ledger event.
type EventRow struct {
	EventID        string                 `bigquery:"event_id"`
	UserID         string                 `bigquery:"user_id"`
	InputType      string                 `bigquery:"input_type"`
	Description    bigquery.NullString    `bigquery:"description"`
	Amount         bigquery.NullFloat64   `bigquery:"amount"`
	CommitmentDate bigquery.NullDate      `bigquery:"commitment_date"`
	Balance        bigquery.NullFloat64   `bigquery:"balance"`
	QuestionText   bigquery.NullString    `bigquery:"question_text"`
	RawInput       string                 `bigquery:"raw_input"`
	VectorID       bigquery.NullString    `bigquery:"vector_id"`
	CreatedTS      time.Time              `bigquery:"created_ts"`
	ExportedTS     bigquery.NullTimestamp `bigquery:"exported_ts"`
}

// Exporter writes ledger events into the analytics dataset.
type Exporter struct {
	client  *bigquery.Client
	dataset string
	log     zerolog.Logger
}

// NewExporter creates an exporter for projectID/dataset. Credentials come
// from Application Default Credentials.
func NewExporter(ctx context.Context, projectID, dataset string, log zerolog.Logger) (*Exporter, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("archive: bigquery client: %w", err)
	}

	return &Exporter{client: client, dataset: dataset, log: log}, nil
}

// Close releases the underlying client.
func (e *Exporter) Close() error {
	return e.client.Close()
}

// ExportEvent appends one ledger event to the archive table.
func (e *Exporter) ExportEvent(ctx context.Context, ev *store.Event) error {
	row := rowFromEvent(ev)

	inserter := e.client.Dataset(e.dataset).Table(eventsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("archive: inserting event %s: %w", ev.ID, err)
	}

	e.log.Debug().Str("event_id", ev.ID).Str("user_id", ev.UserID).Msg("Event archived")
	return nil
}

// CountExported returns how many events have been archived for a user.
// Used by the CLI to sanity-check exports.
func (e *Exporter) CountExported(ctx context.Context, userID string) (int64, error) {
	q := e.client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM %s.%s
		WHERE user_id = @user_id
	`, e.dataset, eventsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("archive: count query: %w", err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	for {
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("archive: count read: %w", err)
		}
	}

	return row.N, nil
}

func rowFromEvent(ev *store.Event) *EventRow {
	row := &EventRow{
		EventID:    ev.ID,
		UserID:     ev.UserID,
		InputType:  ev.InputType,
		RawInput:   ev.RawInput,
		CreatedTS:  ev.CreatedAt,
		ExportedTS: bigquery.NullTimestamp{Timestamp: time.Now().UTC(), Valid: true},
	}

	if ev.Description != "" {
		row.Description = bigquery.NullString{StringVal: ev.Description, Valid: true}
	}
	if ev.Amount != 0 {
		row.Amount = bigquery.NullFloat64{Float64: ev.Amount, Valid: true}
	}
	if ev.CommitmentDate != nil {
		row.CommitmentDate = bigquery.NullDate{Date: civil.DateOf(*ev.CommitmentDate), Valid: true}
	}
	if ev.InputType == store.EventBalanceUpdate {
		row.Balance = bigquery.NullFloat64{Float64: ev.Balance, Valid: true}
	}
	if ev.QuestionText != "" {
		row.QuestionText = bigquery.NullString{StringVal: ev.QuestionText, Valid: true}
	}
	if ev.VectorID != "" {
		row.VectorID = bigquery.NullString{StringVal: ev.VectorID, Valid: true}
	}

	return row
}
