package main

import (
	"fmt"
	"os"
	"os/user"

	"smelt/repl"
)

func main() {
	currentUser, err := user.Current()
	if err != nil {
		fmt.Printf("Error getting current user: %v\n", err)
		return
	}

	fmt.Printf("Welcome to the smelt REPL, %s!\n", currentUser.Username)
	fmt.Println("Type a full function on one line to see its lowered graph.")
	repl.Start(os.Stdin)
}
