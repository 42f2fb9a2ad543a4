package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tapestry/tapestry/pkg/stores"
)

func ExampleSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	run := &stores.Run{
		ID:        "run-001",
		Root:      "/src/",
		Targets:   []string{"all"},
		Status:    stores.RunStatusRunning,
		StartedAt: time.Now(),
	}
	_ = store.CreateRun(ctx, run)
	_ = store.RecordTargetBuild(ctx, &stores.TargetBuild{
		RunID:   run.ID,
		Zone:    "/src/",
		Target:  "/src/a.o",
		Action:  "cc",
		Outcome: stores.OutcomeBuilt,
	})
	_ = store.CompleteRun(ctx, run.ID, stores.RunStatusSucceeded, 1, nil)

	got, _ := store.GetRun(ctx, run.ID)
	builds, _ := store.ListTargetBuilds(ctx, run.ID)
	fmt.Println(got.Status, got.Built, len(builds))
	// Output: succeeded 1 1
}
