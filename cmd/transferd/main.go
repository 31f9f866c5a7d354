package main

import "github.com/redpay/transferd/internal/cli"

func main() {
	cli.Execute()
}
