package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/azzurro/pkg/log"
	"github.com/raterudder/azzurro/pkg/storage"
	"github.com/raterudder/azzurro/pkg/types"
)

// seed registers devices in the Firestore emulator for local development with
// -portal-provider=mock.
func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured()
	devices := lflag.String("seed-devices", "ZA1ES0000000001=roof,ZA1ES0000000002=garage", "comma-delimited list of thingKey=name to register")
	lflag.Configure()

	ctx := context.Background()
	defer s.Close()

	log.Ctx(ctx).InfoContext(ctx, "seeding devices")

	for _, entry := range strings.Split(*devices, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		thingKey, name, _ := strings.Cut(entry, "=")
		err := s.CreateDevice(ctx, types.Device{
			ThingKey: strings.TrimSpace(thingKey),
			Name:     strings.TrimSpace(name),
		})
		switch {
		case errors.Is(err, storage.ErrDeviceExists):
			log.Ctx(ctx).InfoContext(ctx, "device already seeded", slog.String("thing", log.Redact(thingKey)))
		case err != nil:
			panic(fmt.Errorf("failed to seed %s: %w", thingKey, err))
		default:
			log.Ctx(ctx).InfoContext(ctx, "seeded device", slog.String("thing", log.Redact(thingKey)))
		}
	}

	list, err := s.ListDevices(ctx)
	if err != nil {
		panic(err)
	}
	log.Ctx(ctx).InfoContext(ctx, "seeding complete", slog.Int("devices", len(list)))
}
