// Command token mints a session token for a viewer, for use as
// SESSION_TOKEN by the chat command.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"marketchat/auth"
)

func main() {
	id := flag.String("id", "", "viewer identifier")
	name := flag.String("name", "", "viewer full name")
	secret := flag.String("secret", "", "signing secret, must match SESSION_SECRET")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *id == "" || *secret == "" {
		log.Fatal("both -id and -secret are required")
	}

	token, err := auth.NewSessionToken(auth.Viewer{ID: *id, FullName: *name}, []byte(*secret), *ttl)
	if err != nil {
		log.Fatal("token signing failed: ", err)
	}
	fmt.Println(token)
}
