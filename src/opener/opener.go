// Package opener hands decoded payloads to the desktop's default handler.
package opener

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/pkg/browser"
)

func init() {
	// The browser helper echoes child output; keep run-once stdout clean.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// Openable reports whether payload is an absolute URL whose scheme is allowed.
func Openable(payload string, schemes []string) bool {
	u, err := url.Parse(strings.TrimSpace(payload))
	if err != nil || u.Scheme == "" {
		return false
	}
	if (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
		return false
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return true
		}
	}
	return false
}

// Open launches the default handler for payload.
func Open(payload string) error {
	if err := browser.OpenURL(strings.TrimSpace(payload)); err != nil {
		return fmt.Errorf("failed to open payload: %w", err)
	}
	return nil
}
