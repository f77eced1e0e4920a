package main

import (
	"github.com/robotalks/ringtask/pkg/cli/sh"
	"github.com/robotalks/ringtask/pkg/env"

	_ "github.com/robotalks/ringtask/pkg/cli/cmds/buffer"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
