package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func ExampleManager_CheckAndMarkProcessed() {
	manager, _ := NewManager(newMemoryStore(), 7*24*time.Hour)
	eventID := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	for range 2 {
		seen, _ := manager.CheckAndMarkProcessed(context.Background(), "analytics", eventID)
		if seen {
			fmt.Println("skip duplicate delivery")
			continue
		}
		fmt.Println("record event")
	}
	// Output:
	// record event
	// skip duplicate delivery
}
