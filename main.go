package main

import (
	"runtime"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/cmd"
)

// The preview window is driven from the scan loop on the main goroutine, and
// HighGUI needs that goroutine to stay on the main OS thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	cmd.Execute()
}
