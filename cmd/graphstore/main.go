// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/graphstore/cmd/graphstore/cmd"
)

func main() {
	cmd.Execute()
}
