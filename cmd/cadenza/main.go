package main

import "github.com/RyanBlaney/cadenza/cmd/cadenza/cmd"

func main() {
	cmd.Execute()
}
