package main

import "WikiTracker/internal/cli"

func main() {
	cli.Execute()
}
