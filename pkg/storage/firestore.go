package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/azzurro/pkg/log"
	"github.com/raterudder/azzurro/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const devicesCollection = "devices"

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Each device is a document keyed by its thing key holding the
// device as JSON.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
	now       func() time.Time
}

var _ Database = (*FirestoreProvider)(nil)

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{now: time.Now}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID may be empty since it can be detected from credentials.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	if f.now == nil {
		f.now = time.Now
	}
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func decodeDevice(ctx context.Context, doc *firestore.DocumentSnapshot) (types.Device, error) {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "device doc missing json", slog.String("thing", log.Redact(doc.Ref.ID)))
		return types.Device{}, fmt.Errorf("device document missing 'json' field: %w", err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "device doc json not string", slog.String("thing", log.Redact(doc.Ref.ID)))
		return types.Device{}, fmt.Errorf("device 'json' field is not a string")
	}
	var d types.Device
	if err := json.Unmarshal([]byte(jsonStr), &d); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal device", slog.String("thing", log.Redact(doc.Ref.ID)), slog.Any("err", err))
		return types.Device{}, fmt.Errorf("failed to unmarshal device json: %w", err)
	}
	// the document ID is authoritative
	d.ThingKey = doc.Ref.ID
	return d, nil
}

// ListDevices returns every registered device ordered by thing key.
// Malformed documents are skipped.
func (f *FirestoreProvider) ListDevices(ctx context.Context) ([]types.Device, error) {
	iter := f.client.Collection(devicesCollection).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var devices []types.Device
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating devices: %w", err)
		}
		d, err := decodeDevice(ctx, doc)
		if err != nil {
			// Skip malformed documents
			continue
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// GetDevice returns the device registered under thingKey.
func (f *FirestoreProvider) GetDevice(ctx context.Context, thingKey string) (types.Device, error) {
	if thingKey == "" {
		return types.Device{}, fmt.Errorf("thingKey cannot be empty")
	}
	doc, err := f.client.Collection(devicesCollection).Doc(thingKey).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Device{}, ErrDeviceNotFound
		}
		return types.Device{}, fmt.Errorf("failed to fetch device doc: %w", err)
	}
	return decodeDevice(ctx, doc)
}

// CreateDevice registers device. The document is created atomically so the
// same thing key cannot be registered twice.
func (f *FirestoreProvider) CreateDevice(ctx context.Context, device types.Device) error {
	if err := validateDevice(device); err != nil {
		return err
	}
	if device.CreatedAt.IsZero() {
		device.CreatedAt = f.now().UTC()
	}
	jsonBytes, err := json.Marshal(device)
	if err != nil {
		return fmt.Errorf("failed to marshal device: %w", err)
	}
	_, err = f.client.Collection(devicesCollection).Doc(device.ThingKey).Create(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"createdAt": device.CreatedAt,
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return ErrDeviceExists
		}
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

// DeleteDevice removes the device registered under thingKey.
func (f *FirestoreProvider) DeleteDevice(ctx context.Context, thingKey string) error {
	if thingKey == "" {
		return fmt.Errorf("thingKey cannot be empty")
	}
	_, err := f.client.Collection(devicesCollection).Doc(thingKey).Delete(ctx, firestore.Exists)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrDeviceNotFound
		}
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return nil
}
