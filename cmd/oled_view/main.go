package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"
)

// ============================================================================
// oled_view - terminal emulator for the Santoku OLED
// ============================================================================
// Follows santokud's state websocket and draws the 21x8 text model in a
// terminal. Inverted lines use reverse video. Reconnects until quit.
//
// Keys: q, Esc or Ctrl+C to quit.
// ============================================================================

const (
	oledColumns = 21
	oledLines   = 8

	reconnectDelay = time.Second
)

type displayLine struct {
	Text     string `json:"text"`
	Inverted bool   `json:"inverted"`
}

type displayState struct {
	Mode         string        `json:"mode"`
	Splash       bool          `json:"splash"`
	AltTabActive bool          `json:"alt_tab_active"`
	Lines        []displayLine `json:"lines"`
	Version      uint64        `json:"version"`
}

type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Messages posted from the websocket goroutine to the UI loop.
type (
	msgInit      displayState
	msgState     displayState
	msgConnected string
	msgDown      error
)

type msgAltTab struct {
	Active  bool   `json:"active"`
	Version uint64 `json:"version"`
}

func main() {
	var (
		wsURL = flag.String("url", "ws://127.0.0.1:3010/ws/state", "santokud state websocket URL")
		once  = flag.Bool("once", false, "Print the first state as text and exit (no terminal UI)")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	if *once {
		if err := printOnce(u.String()); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("create screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("init screen: %v", err)
	}
	defer screen.Fini()

	post := func(data any) {
		_ = screen.PostEvent(tcell.NewEventInterrupt(data))
	}
	go follow(u.String(), post)

	ui := &view{screen: screen, status: "connecting to " + u.String()}
	ui.draw()

	for {
		switch ev := screen.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventResize:
			screen.Sync()
			ui.draw()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				return
			}
		case *tcell.EventInterrupt:
			ui.apply(ev.Data())
			ui.draw()
		}
	}
}

// follow keeps a websocket connection open and posts every frame.
func follow(u string, post func(any)) {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	for {
		conn, _, err := d.Dial(u, nil)
		if err != nil {
			post(msgDown(err))
			time.Sleep(reconnectDelay)
			continue
		}
		post(msgConnected(u))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				post(msgDown(err))
				break
			}
			if m, ok := decodeFrame(data); ok {
				post(m)
			}
		}
		conn.Close()
		time.Sleep(reconnectDelay)
	}
}

// decodeFrame turns one websocket frame into a UI message.
func decodeFrame(data []byte) (any, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	switch env.Type {
	case "state_init", "state_changed":
		var st displayState
		if err := json.Unmarshal(env.Data, &st); err != nil {
			return nil, false
		}
		if env.Type == "state_init" {
			return msgInit(st), true
		}
		return msgState(st), true
	case "alt_tab_changed":
		var d msgAltTab
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, false
		}
		return d, true
	default:
		return nil, false
	}
}

// ============================================================================
// Rendering
// ============================================================================

type view struct {
	screen tcell.Screen
	state  *displayState
	status string
}

func (v *view) apply(m any) {
	switch m := m.(type) {
	case msgInit:
		// A fresh connection resets the version, even if the daemon restarted.
		st := displayState(m)
		v.state = &st
	case msgState:
		if v.state != nil && m.Version < v.state.Version {
			return
		}
		st := displayState(m)
		v.state = &st
	case msgAltTab:
		if v.state == nil || m.Version < v.state.Version {
			return
		}
		v.state.AltTabActive = m.Active
		v.state.Version = m.Version
	case msgConnected:
		v.status = "connected to " + string(m)
	case msgDown:
		v.status = fmt.Sprintf("disconnected (%v), retrying", error(m))
	}
}

func (v *view) draw() {
	s := v.screen
	s.Clear()

	base := tcell.StyleDefault.Foreground(tcell.ColorAqua).Background(tcell.ColorBlack)
	frame := tcell.StyleDefault.Foreground(tcell.ColorGray)

	// Frame around the 21x8 panel, offset one cell from the corner.
	const x0, y0 = 2, 1
	drawBox(s, x0-1, y0-1, x0+oledColumns, y0+oledLines, frame)

	for row := 0; row < oledLines; row++ {
		var line displayLine
		if v.state != nil && row < len(v.state.Lines) {
			line = v.state.Lines[row]
		}
		style := base.Reverse(line.Inverted)
		runes := []rune(line.Text)
		for col := 0; col < oledColumns; col++ {
			r := ' '
			if col < len(runes) {
				r = runes[col]
			}
			s.SetContent(x0+col, y0+row, r, nil, style)
		}
	}

	status := v.status
	if v.state != nil {
		status = fmt.Sprintf("%s  mode=%s", status, v.state.Mode)
		if v.state.AltTabActive {
			status += "  alt-tab"
		}
	}
	drawText(s, 1, y0+oledLines+1, status, tcell.StyleDefault)
	drawText(s, 1, y0+oledLines+2, "q to quit", frame)

	s.Show()
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, style)
	}
}

func drawBox(s tcell.Screen, x1, y1, x2, y2 int, style tcell.Style) {
	for x := x1 + 1; x < x2; x++ {
		s.SetContent(x, y1, tcell.RuneHLine, nil, style)
		s.SetContent(x, y2, tcell.RuneHLine, nil, style)
	}
	for y := y1 + 1; y < y2; y++ {
		s.SetContent(x1, y, tcell.RuneVLine, nil, style)
		s.SetContent(x2, y, tcell.RuneVLine, nil, style)
	}
	s.SetContent(x1, y1, tcell.RuneULCorner, nil, style)
	s.SetContent(x2, y1, tcell.RuneURCorner, nil, style)
	s.SetContent(x1, y2, tcell.RuneLLCorner, nil, style)
	s.SetContent(x2, y2, tcell.RuneLRCorner, nil, style)
}

// printOnce dumps the state_init frame as plain text; inverted lines are
// wrapped in brackets.
func printOnce(u string) error {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := d.Dial(u, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", u, err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		m, ok := decodeFrame(data)
		if !ok {
			continue
		}
		var lines []displayLine
		switch st := m.(type) {
		case msgInit:
			lines = st.Lines
		case msgState:
			lines = st.Lines
		default:
			continue
		}
		for _, l := range lines {
			if l.Inverted {
				fmt.Fprintf(os.Stdout, "[%-*s]\n", oledColumns, l.Text)
			} else {
				fmt.Fprintf(os.Stdout, " %-*s\n", oledColumns, l.Text)
			}
		}
		return nil
	}
}
