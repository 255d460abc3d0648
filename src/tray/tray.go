package tray

import (
	"context"
	"log"
	"time"

	"github.com/getlantern/systray"
)

// Controller is the write side of the event loop used by the menu.
type Controller interface {
	Arm()
}

type Config struct {
	Hotkey       string
	Source       Source
	Controller   Controller
	PollInterval time.Duration
	// OnExit runs after the tray has been torn down.
	OnExit func()
}

type menuView struct {
	last *systray.MenuItem
}

func (m menuView) SetTooltip(text string) { systray.SetTooltip(text) }

func (m menuView) SetLast(text string) {
	if text == "" {
		return
	}
	m.last.SetTitle("Last: " + truncate(text, 48))
	m.last.SetTooltip(text)
}

// Run owns the calling goroutine until Quit is chosen or ctx is cancelled.
// Call it from the main goroutine.
func Run(ctx context.Context, cfg Config) {
	ctx, cancel := context.WithCancel(ctx)
	onReady := func() {
		systray.SetIcon(iconBytes())
		systray.SetTitle(appName)
		systray.SetTooltip(appName)

		mScan := systray.AddMenuItem("Scan QR code", "Arm the scanner for one selection")
		mLast := systray.AddMenuItem("Last: (none)", "Most recent scan result")
		mLast.Disable()
		systray.AddSeparator()
		mQuit := systray.AddMenuItem("Quit", "Quit the application")

		go NewPresenter(cfg.Source, menuView{last: mLast}, cfg.Hotkey).Run(ctx, cfg.PollInterval)

		go func() {
			for {
				select {
				case <-mScan.ClickedCh:
					cfg.Controller.Arm()
				case <-mQuit.ClickedCh:
					log.Printf("tray: quit requested")
					systray.Quit()
					return
				case <-ctx.Done():
					systray.Quit()
					return
				}
			}
		}()
	}
	onExit := func() {
		cancel()
		if cfg.OnExit != nil {
			cfg.OnExit()
		}
	}
	systray.Run(onReady, onExit)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
