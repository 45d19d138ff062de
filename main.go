package main

import "github.com/warp/billing-engine/cmd"

func main() {
	cmd.Execute()
}
