package main

import "prdash/internal/cli"

func main() {
	cli.Execute()
}
