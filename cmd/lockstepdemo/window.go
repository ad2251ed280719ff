package main

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/maxpoletaev/lockstep/render"
	"github.com/maxpoletaev/lockstep/sim"
)

const (
	arenaWidth  = 640
	arenaHeight = 480
)

var entityColor = map[uint8]rl.Color{
	0: rl.SkyBlue, // KindPlayer
	1: rl.Gold,    // KindPickup
	2: rl.Red,     // KindProjectile
}

// window is the presentation layer over a raylib window, grounded on the
// teacher's ui.Window: same delegate-field hotkey wiring, same
// draw-text-with-shadow FPS/ping overlay, generalized from blitting an NES
// PPU framebuffer to drawing render.State's entity list directly.
type window struct {
	QuitDelegate func()

	ShowFPS  bool
	ShowPing bool

	remotePingMs int64
	shouldClose  bool
	scale        int
}

func createWindow(scale int, title string, verbose bool) *window {
	if !verbose {
		rl.SetTraceLogLevel(rl.LogNone)
	}

	rl.InitWindow(int32(arenaWidth*scale), int32(arenaHeight*scale), title)
	rl.SetExitKey(0)

	return &window{scale: scale}
}

func (w *window) Close() {
	rl.CloseWindow()
}

func (w *window) ShouldClose() bool {
	return w.shouldClose || rl.WindowShouldClose()
}

func (w *window) SetFrameRate(fps int) {
	rl.SetTargetFPS(int32(fps))
}

func (w *window) SetPingInfo(ms int64) {
	w.remotePingMs = ms
}

func (w *window) drawTextWithShadow(text string, x, y, size int32, colour rl.Color) {
	rl.DrawText(text, x+1, y+1, size, rl.Black)
	rl.DrawText(text, x, y, size, colour)
}

// Refresh draws one frame of the harness's render state: every entity as a
// filled circle, colored by kind, scaled from arena units to window pixels.
func (w *window) Refresh(state render.State) {
	rl.BeginDrawing()
	rl.ClearBackground(rl.DarkGray)

	for _, e := range state.Entities {
		if !e.Alive {
			continue
		}

		colour, ok := entityColor[e.Kind]
		if !ok {
			colour = rl.White
		}

		radius := float32(6 * w.scale)
		if e.Kind != 0 {
			radius = float32(4 * w.scale)
		}

		rl.DrawCircle(int32(e.X)*int32(w.scale), int32(e.Y)*int32(w.scale), radius, colour)
	}

	var offsetY int32

	if w.ShowFPS {
		fps := fmt.Sprintf("%d fps", rl.GetFPS())
		w.drawTextWithShadow(fps, 6, offsetY+5, 10, rl.White)
		offsetY += 12
	}

	if w.ShowPing && w.remotePingMs > 0 {
		colour := rl.Green

		if w.remotePingMs > 150 {
			colour = rl.Red
		} else if w.remotePingMs > 100 {
			colour = rl.Yellow
		}

		ping := fmt.Sprintf("%d ms", w.remotePingMs)
		w.drawTextWithShadow(ping, 6, offsetY+5, 10, colour)
	}

	rl.DrawText(fmt.Sprintf("frame %d", state.Frame), 6, int32(arenaHeight*w.scale)-16, 10, rl.Gray)

	rl.EndDrawing()
}

// HandleHotKeys handles a screenshot key and a quit combo, dispatched
// through a delegate rather than the window reaching into session state
// directly.
func (w *window) HandleHotKeys() {
	switch {
	case rl.IsKeyPressed(rl.KeyF12):
		rl.TakeScreenshot("screenshot.png")

	case w.isModifierPressed() && rl.IsKeyPressed(rl.KeyQ):
		w.shouldClose = true

		if w.QuitDelegate != nil {
			w.QuitDelegate()
		}
	}
}

func (w *window) isModifierPressed() bool {
	ctrl := rl.IsKeyDown(rl.KeyLeftControl) || rl.IsKeyDown(rl.KeyRightControl)
	super := rl.IsKeyDown(rl.KeyLeftSuper) || rl.IsKeyDown(rl.KeyRightSuper)
	return ctrl || super
}

// readLocalButtons polls the keyboard for this tick's local input, WASD/
// arrow keys for movement and Space for the action button.
func readLocalButtons() sim.Buttons {
	return sim.Buttons{
		Up:     rl.IsKeyDown(rl.KeyW) || rl.IsKeyDown(rl.KeyUp),
		Down:   rl.IsKeyDown(rl.KeyS) || rl.IsKeyDown(rl.KeyDown),
		Left:   rl.IsKeyDown(rl.KeyA) || rl.IsKeyDown(rl.KeyLeft),
		Right:  rl.IsKeyDown(rl.KeyD) || rl.IsKeyDown(rl.KeyRight),
		Action: rl.IsKeyDown(rl.KeySpace),
	}
}
