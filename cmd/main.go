package main

import "clockout-watcher/internal/server"

func main() {
	server.Run()
}
