package main

import "github.com/dbsmedya/puppetmaster/cmd/puppetmaster/cmd"

func main() {
	cmd.Execute()
}
