// Command seed loads a small demo commune into the configured store and
// prints a token per user, for trying the gateway with the terminal client.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mama165/sdk-go/logs"

	"github.com/mahaj/commune-chat/pkg/auth"
	"github.com/mahaj/commune-chat/pkg/config"
	"github.com/mahaj/commune-chat/pkg/model"
	"github.com/mahaj/commune-chat/pkg/store"
)

const communeID = 42

var users = []struct {
	user model.User
	role model.Role
}{
	{model.User{ID: 1, Username: "ada"}, model.RoleAdmin},
	{model.User{ID: 2, Username: "bea"}, model.RoleModerator},
	{model.User{ID: 3, Username: "cy"}, model.RoleMember},
	{model.User{ID: 7, Username: "grace"}, ""},
	{model.User{ID: 9, Username: "gus"}, ""},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logs.GetLoggerFromString(cfg.LogLevel)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	for _, u := range users {
		if err := st.PutUser(ctx, u.user); err != nil {
			log.Fatalf("Failed to store user %d: %v", u.user.ID, err)
		}
		if u.role != "" {
			if err := st.PutCommuneMember(ctx, communeID, u.user.ID, u.role, true); err != nil {
				log.Fatalf("Failed to store member %d: %v", u.user.ID, err)
			}
		}
	}

	// The commune service creates the chat with its creator as the only
	// participant; the admin then brings the others in.
	chatID, err := st.CreateGroupChat(ctx, communeID, 1, "Demo commune")
	if err != nil {
		log.Fatalf("Failed to create group chat: %v", err)
	}
	if err := st.AddParticipants(ctx, chatID, []int64{2, 3}); err != nil {
		log.Fatalf("Failed to add participants: %v", err)
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("group chat: %d\n", chatID)
	for _, u := range users {
		token, err := verifier.GenerateToken(u.user.ID, cfg.TokenTTL)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%-6s id=%d token=%s\n", u.user.Username, u.user.ID, token)
	}
}
