package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/mahaj/commune-chat/pkg/auth"
)

func get(apiAddr, path, token string) {
	req, err := http.NewRequest(http.MethodGet, apiAddr+path, nil)
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Add("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	log.Printf("GET %s -> %s\n%s", path, resp.Status, body)
}

func main() {
	apiAddr := flag.String("api", "http://localhost:8081", "api service address")
	userID := flag.Int64("user", 7, "user id")
	peer := flag.Int64("peer", 9, "peer of the individual chat to fetch")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "token signing secret")
	flag.Parse()

	v, err := auth.NewVerifier(*secret, "commune-chat")
	if err != nil {
		log.Fatal(err)
	}
	token, err := v.GenerateToken(*userID, time.Minute)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Token: %s...\n", token[:10])

	get(*apiAddr, "/chats", token)
	get(*apiAddr, fmt.Sprintf("/chats/individual/%d/messages", *peer), token)
	get(*apiAddr, "/users/search?username=g", token)
}
