// Copyright © 2018 One Concern

package main

import (
	"github.com/papermake/papermake/cmd/papermaked/cmd"
)

func main() {
	cmd.Execute()
}
