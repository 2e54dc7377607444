// Command client is a terminal chat client for local testing. It backfills a
// conversation from the read API, then joins its room on the gateway.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mahaj/commune-chat/pkg/auth"
	"github.com/mahaj/commune-chat/pkg/model"
)

func fetchHistory(apiAddr, token string, d model.Descriptor) ([]model.Message, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/chats/%s/%d/messages", apiAddr, d.Kind, d.ID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("history: %s: %s", resp.Status, body.Error)
	}

	var msgs []model.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func printMessage(m *model.Message) {
	name := m.SenderUsername
	if name == "" {
		name = fmt.Sprintf("user %d", m.SenderID)
	}
	fmt.Printf("\r[%s] %s: %s\n> ", m.CreatedAt.Local().Format("15:04"), name, m.Text)
}

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "gateway service address")
	apiAddr := flag.String("api", "http://localhost:8081", "api service address")
	userID := flag.Int64("user", 1, "user id")
	token := flag.String("token", "", "identity token (minted from -secret when empty)")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "token signing secret for local testing")
	issuer := flag.String("issuer", "commune-chat", "token issuer")
	groupID := flag.Int64("group", 0, "commune chat id to open")
	dmUser := flag.Int64("dm", 0, "user id to message directly (overrides -group)")
	flag.Parse()

	d := model.Descriptor{Kind: model.KindGroup, ID: *groupID}
	if *dmUser != 0 {
		d = model.Descriptor{Kind: model.KindIndividual, ID: *dmUser}
	}
	if d.ID == 0 {
		log.Fatal("one of -group or -dm is required")
	}

	if *token == "" {
		v, err := auth.NewVerifier(*secret, *issuer)
		if err != nil {
			log.Fatal("token: ", err)
		}
		if *token, err = v.GenerateToken(*userID, time.Hour); err != nil {
			log.Fatal("token: ", err)
		}
	}

	// 1. Backfill from history, then follow live events.
	history, err := fetchHistory(*apiAddr, *token, d)
	if err != nil {
		log.Fatal(err)
	}
	for i := range history {
		printMessage(&history[i])
	}

	// 2. Connect and join the conversation's room.
	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws"}
	header := http.Header{}
	header.Add("Authorization", "Bearer "+*token)
	c, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	if err := c.WriteJSON(model.Command{Type: model.TypeJoin, Conversation: d}); err != nil {
		log.Fatal("join:", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var ev model.Event
			if err := c.ReadJSON(&ev); err != nil {
				log.Println("read:", err)
				return
			}
			switch ev.Type {
			case model.TypeMessage:
				printMessage(ev.Message)
			case model.TypeJoined:
				fmt.Printf("\rjoined %s\n> ", ev.Room)
			case model.TypeSendFailed:
				fmt.Printf("\rnot sent: %s\n> ", ev.Error)
			case model.TypeError:
				fmt.Printf("\rerror: %s\n> ", ev.Error)
			}
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	quit := make(chan struct{})

	// 3. Read from stdin and send messages.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := scanner.Text()
			switch text {
			case "":
				fmt.Print("> ")
				continue
			case "/quit":
				close(quit)
				return
			}
			if err := c.WriteJSON(model.Command{Type: model.TypeSend, Conversation: d, Text: text}); err != nil {
				log.Println("write:", err)
				return
			}
		}
	}()

	select {
	case <-done:
		return
	case <-interrupt:
	case <-quit:
	}

	// Cleanly close the connection by sending a close message and then
	// waiting (with timeout) for the server to close the connection.
	err = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("write close:", err)
		return
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}
