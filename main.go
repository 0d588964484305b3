package main

import "github.com/vietddude/cycler/internal/cli"

func main() {
	cli.Execute()
}
