package notification

import "log"

// ShowBlockingError reports a fatal startup problem to the user and returns
// once it has been acknowledged. On platforms without a native dialog it logs.
func ShowBlockingError(title, message string) {
	log.Printf("%s: %s", title, message)
	showMessageBox(title, message)
}
