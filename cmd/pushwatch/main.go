package main

import "github.com/vietddude/pushwatch/internal/cli"

func main() {
	cli.Execute()
}
