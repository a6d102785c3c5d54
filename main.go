package main

import (
	"fmt"

	"github.com/dsk1ra/rendezvous-signal/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
