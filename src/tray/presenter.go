package tray

import (
	"context"
	"fmt"
	"time"

	"screen-qr-scan/src/eventloop"
	"screen-qr-scan/src/messages"
	"screen-qr-scan/src/region"
)

const appName = "Screen QR Scan"

// Source is the read side of the event loop.
type Source interface {
	Snapshot() eventloop.View
	Outcomes() <-chan messages.Outcome
}

// View is what the presenter writes to. The systray menu implements it.
type View interface {
	SetTooltip(text string)
	SetLast(text string)
}

// Presenter polls the loop on a timer and pushes state changes to a View.
// It never blocks on the loop.
type Presenter struct {
	src     Source
	view    View
	hotkey  string
	tooltip string
}

func NewPresenter(src Source, view View, hotkey string) *Presenter {
	return &Presenter{src: src, view: view, hotkey: hotkey}
}

// Tick reads the current snapshot and at most one outcome.
func (p *Presenter) Tick() {
	if tip := p.describe(p.src.Snapshot()); tip != p.tooltip {
		p.tooltip = tip
		p.view.SetTooltip(tip)
	}
	select {
	case o := <-p.src.Outcomes():
		p.view.SetLast(messages.Describe(o))
	default:
	}
}

// Run ticks every interval until ctx is cancelled.
func (p *Presenter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	p.Tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

func (p *Presenter) describe(v eventloop.View) string {
	switch v.State {
	case region.Selecting:
		r := region.Normalize(v.Start, v.Current)
		return fmt.Sprintf("%s - selecting %dx%d", appName, r.Width, r.Height)
	case region.AwaitingResult:
		return fmt.Sprintf("%s - scanning...", appName)
	}
	if v.Armed {
		return fmt.Sprintf("%s - drag a rectangle around a QR code", appName)
	}
	return fmt.Sprintf("%s - press %s to arm", appName, p.hotkey)
}
