package main

import "github.com/OpenTraceLab/OpenTraceKeyboard/cmd/keyboard-configurator/cmd"

func main() {
	cmd.Execute()
}
