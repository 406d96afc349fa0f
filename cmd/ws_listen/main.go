package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// ws_listen prints the qdecd state WebSocket stream in a readable form.

type frame struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

type rotation struct {
	Encoder    string   `json:"encoder"`
	Mode       string   `json:"mode"`
	Whole      int32    `json:"whole"`
	Frac       int32    `json:"frac"`
	Degrees    *float64 `json:"degrees"`
	TotalWhole int64    `json:"total_whole"`
	TotalFrac  int64    `json:"total_frac"`
}

type encoderIdle struct {
	Encoder string `json:"encoder"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3002/ws", "qdecd state websocket URL")
		raw   = flag.Bool("raw", false, "Print frames as received")
	)
	flag.Parse()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	log.Printf("connecting to %s...", *wsURL)
	conn, _, err := d.Dial(*wsURL, nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()
	log.Printf("connected! (press Ctrl+C to exit)")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if *raw {
				fmt.Println(string(msg))
				continue
			}
			printFrame(msg)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

func printFrame(msg []byte) {
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		fmt.Printf("[TEXT] %s\n", msg)
		return
	}
	ts := f.Ts.Local().Format("15:04:05.000")

	switch f.Type {
	case "rotation":
		var r rotation
		if err := json.Unmarshal(f.Data, &r); err != nil {
			break
		}
		if r.Degrees != nil {
			total := float64(r.TotalWhole) + float64(r.TotalFrac)/1e6
			fmt.Printf("%s [ROTATION] %-10s %+9.3f deg  total %.3f\n", ts, r.Encoder, *r.Degrees, total)
		} else {
			fmt.Printf("%s [ROTATION] %-10s %+6d ticks  total %d\n", ts, r.Encoder, r.Whole, r.TotalWhole)
		}
		return

	case "encoder_idle":
		var e encoderIdle
		if err := json.Unmarshal(f.Data, &e); err != nil {
			break
		}
		fmt.Printf("%s [IDLE]     %s\n", ts, e.Encoder)
		return
	}

	pretty, _ := json.MarshalIndent(f, "", "  ")
	fmt.Printf("%s [%s]\n%s\n", ts, f.Type, pretty)
}
