//go:build !windows

package notification

import (
	"fmt"
	"os"
)

func showMessageBox(title, message string) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", title, message)
}
