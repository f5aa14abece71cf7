package handshake

import (
	"context"
	"fmt"
)

const (
	WindowName      = "TebexAuth"
	DefaultWidth    = 600
	DefaultHeight   = 800
	windowFlags     = "resizable=yes,scrollbars=yes,status=yes"
	fallbackScreenW = 1920
	fallbackScreenH = 1080
)

// Screen is the reported size of the visitor's display.
type Screen struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Directive tells the browser which window to open and where.
type Directive struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Features string `json:"features"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Left     int    `json:"left"`
	Top      int    `json:"top"`
}

// WindowOpener hands a directive to the primary context.
type WindowOpener interface {
	Open(ctx context.Context, directive Directive) error
}

// ScreenReporter returns the display size reported for the request in ctx.
type ScreenReporter interface {
	Screen(ctx context.Context) (Screen, bool)
}

// CenteredWindow sizes a login window and centers it on screen.
func CenteredWindow(loginURL string, screen Screen, width, height int) Directive {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if screen.Width <= 0 || screen.Height <= 0 {
		screen = Screen{Width: fallbackScreenW, Height: fallbackScreenH}
	}
	left := screen.Width/2 - width/2
	top := screen.Height/2 - height/2
	return Directive{
		URL:      loginURL,
		Name:     WindowName,
		Width:    width,
		Height:   height,
		Left:     left,
		Top:      top,
		Features: fmt.Sprintf("width=%d,height=%d,top=%d,left=%d,%s", width, height, top, left, windowFlags),
	}
}
