package main

import "github.com/vibast-solutions/ms-go-crowdfunding/cmd"

func main() {
	cmd.Execute()
}
