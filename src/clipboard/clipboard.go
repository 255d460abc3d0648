package clipboard

import (
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

var (
	mu    sync.Mutex
	ready bool
)

// Init prepares the system clipboard. Write fails until Init succeeds.
func Init() error {
	mu.Lock()
	defer mu.Unlock()
	if err := clipboard.Init(); err != nil {
		return fmt.Errorf("clipboard unavailable: %w", err)
	}
	ready = true
	return nil
}

// Write performs a mutex-guarded clipboard write so concurrent payload
// deliveries cannot interleave.
func Write(text string) error {
	mu.Lock()
	defer mu.Unlock()
	if !ready {
		return fmt.Errorf("clipboard not initialized")
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
