// Command client is a terminal probe for the sync server: it joins a
// room, lets a tester drive one session by hand, and prints every server
// event color-coded. Useful for poking at a running server without a real
// game client.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"

	"github.com/ZapChainDev/Strangerthings/internal/game"
	"github.com/ZapChainDev/Strangerthings/internal/protocol"
)

var (
	infoColor  = color.New(color.FgGreen)
	chatColor  = color.New(color.FgCyan)
	errorColor = color.New(color.FgRed)
	tickColor  = color.New(color.FgYellow)
)

func main() {
	var (
		addr     string
		room     string
		name     string
		identity string
	)
	flag.StringVar(&addr, "addr", "ws://localhost:8080/ws", "server websocket URL")
	flag.StringVar(&room, "room", "hawkins-1", "room id to join")
	flag.StringVar(&name, "name", "probe", "display name")
	flag.StringVar(&identity, "identity", "", "optional stable identity token")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		errorColor.Fprintf(os.Stderr, "dial %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	send := func(msg protocol.ClientMessage) {
		if err := conn.WriteJSON(msg); err != nil {
			errorColor.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
	}

	go readEvents(conn)
	go func() {
		for range time.Tick(2 * time.Second) {
			send(protocol.ClientMessage{Type: protocol.TypeHeartbeat, SentAt: time.Now().UnixMilli()})
		}
	}()

	send(protocol.ClientMessage{Type: protocol.TypeJoin, Name: name, Identity: identity, Room: room})

	fmt.Println("commands: pick <character> | ready | move <x> <z> | turn <yaw> | world <normal|upsideDown> | say <text> | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "pick":
			if len(fields) == 2 {
				send(protocol.ClientMessage{Type: protocol.TypeSelectCharacter, Character: fields[1]})
			}
		case "ready":
			send(protocol.ClientMessage{Type: protocol.TypeReady})
		case "move":
			if len(fields) == 3 {
				x, errX := strconv.ParseFloat(fields[1], 64)
				z, errZ := strconv.ParseFloat(fields[2], 64)
				if errX == nil && errZ == nil {
					pos := game.Vec3{X: x, Z: z}
					send(protocol.ClientMessage{Type: protocol.TypeMove, Position: &pos, Animation: string(game.AnimationWalk)})
				}
			}
		case "turn":
			if len(fields) == 2 {
				if yaw, err := strconv.ParseFloat(fields[1], 64); err == nil {
					send(protocol.ClientMessage{Type: protocol.TypeMove, Yaw: &yaw})
				}
			}
		case "world":
			if len(fields) == 2 {
				send(protocol.ClientMessage{Type: protocol.TypeWorldChange, World: fields[1]})
			}
		case "say":
			if len(fields) > 1 {
				send(protocol.ClientMessage{Type: protocol.TypeChat, Text: strings.Join(fields[1:], " ")})
			}
		case "quit":
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func readEvents(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			errorColor.Fprintf(os.Stderr, "connection closed: %v\n", err)
			os.Exit(0)
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(payload, &envelope); err != nil {
			continue
		}

		switch envelope.Type {
		case protocol.EventChat:
			var msg protocol.ChatMessage
			if json.Unmarshal(payload, &msg) == nil {
				chatColor.Printf("[%s] %s\n", msg.Name, msg.Text)
			}
		case protocol.EventError, protocol.EventCharacterFailed:
			errorColor.Printf("%s\n", payload)
		case protocol.EventPlayersUpdate:
			var msg protocol.PlayersUpdateMessage
			if json.Unmarshal(payload, &msg) == nil {
				for _, d := range msg.Players {
					tickColor.Printf("%s -> (%.1f, %.1f, %.1f) yaw=%.2f %s\n",
						d.ID, d.Position.X, d.Position.Y, d.Position.Z, d.Yaw, d.Animation)
				}
			}
		case protocol.EventHeartbeat:
			// keep quiet; heartbeats would drown everything else
		default:
			infoColor.Printf("%s\n", payload)
		}
	}
}
