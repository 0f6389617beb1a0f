package resync_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/pkg/resync"
)

type catalogueAPI struct{}

func (catalogueAPI) Get(_ context.Context, path string) (json.RawMessage, error) {
	return json.RawMessage(`{"source":"` + path + `"}`), nil
}

// Example_basic demonstrates basic usage of Resync as a library.
func Example_basic() {
	cfg := resync.DefaultConfig()
	cfg.Fetcher = catalogueAPI{}
	cfg.Logger = zap.NewNop()

	rs, err := resync.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create resync: %v", err)
	}
	defer rs.Close()

	ctx := context.Background()
	if err := rs.Start(ctx); err != nil {
		log.Fatalf("Failed to start resync: %v", err)
	}

	if err := rs.Mount(ctx, "dashboard"); err != nil {
		log.Fatalf("Failed to mount dashboard: %v", err)
	}

	snap, _ := rs.Snapshot("dashboard")
	fmt.Println(snap.Screen, snap.Mounted, len(snap.Data), snap.Interval)
	// Output: dashboard true 3 5m0s
}

// Example_customScreens replaces the built-in catalogue.
func Example_customScreens() {
	cfg := resync.DefaultConfig()
	cfg.Fetcher = catalogueAPI{}
	cfg.Logger = zap.NewNop()
	cfg.Screens = []resync.Screen{
		{Name: "fees", Endpoints: []string{"/api/fees"}, Interval: 10 * time.Minute, Topics: []string{resync.TopicProfile}},
		{Name: "library", Endpoints: []string{"/api/library/loans"}, Interval: time.Hour},
	}

	rs, err := resync.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create resync: %v", err)
	}
	defer rs.Close()

	for _, s := range rs.Screens() {
		fmt.Println(s.Screen, s.Interval, s.Topics)
	}
	// Output:
	// fees 10m0s [profile]
	// library 1h0m0s []
}

// Example_withDI demonstrates integration with uber-go/dig.
func Example_withDI() {
	container := dig.New()

	// Provide your logger
	if err := container.Provide(zap.NewNop); err != nil {
		log.Fatal(err)
	}

	// Provide configuration
	if err := container.Provide(func() *resync.Config {
		return &resync.Config{
			APIBaseURL:     "http://localhost:3000",
			RealtimeSource: "none",
		}
	}); err != nil {
		log.Fatal(err)
	}

	// Register Resync
	if err := resync.RegisterWithContainer(container); err != nil {
		log.Fatal(err)
	}

	// Use Resync
	err := container.Invoke(func(rs *resync.Resync) error {
		defer rs.Close()
		fmt.Println(len(rs.Screens()))
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
	// Output: 7
}
