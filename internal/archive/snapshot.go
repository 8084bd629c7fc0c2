package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/finance-assistant/internal/store"
)

// Snapshot is the JSON document written to GCS for one user.
type Snapshot struct {
	UserID     string        `json:"user_id"`
	ExportedAt time.Time     `json:"exported_at"`
	EventCount int           `json:"event_count"`
	Events     []store.Event `json:"events"`
}

// UploadSnapshot writes a JSON snapshot of the user's event history to the
// given bucket and object. It assumes Application Default Credentials are
// configured.
func UploadSnapshot(ctx context.Context, bucketName, objectName, userID string, events []store.Event) error {
	snapshot := Snapshot{
		UserID:     userID,
		ExportedAt: time.Now().UTC(),
		EventCount: len(events),
		Events:     events,
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write snapshot to GCS: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}

	return nil
}

// SnapshotObjectName derives a dated object name for a user's snapshot.
func SnapshotObjectName(userID string, now time.Time) string {
	return fmt.Sprintf("snapshots/%s/%s.json", now.Format("2006/01/02"), userID)
}
