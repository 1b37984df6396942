package main

import "github.com/ilyakorolev/nano-banana-ru/cmd"

func main() {
	cmd.Execute()
}
