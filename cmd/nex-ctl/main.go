package main

import (
	"fmt"
	"os"
	"strings"

	cli "github.com/spf13/pflag"

	"nex/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: nex-ctl [-s socket] trigger | stop | chat <text...>")
		cli.PrintDefaults()
	}
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		cli.Usage()
		os.Exit(2)
	}

	msg := ipc.ControlMessage{Cmd: args[0]}
	switch msg.Cmd {
	case ipc.CmdTrigger, ipc.CmdStop:
	case ipc.CmdChat:
		msg.Text = strings.Join(args[1:], " ")
		if msg.Text == "" {
			cli.Usage()
			os.Exit(2)
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", msg.Cmd)
		os.Exit(2)
	}

	if err := ipc.SendCommand(*socket, msg); err != nil {
		fmt.Println("nex not running:", err)
		os.Exit(1)
	}
}
