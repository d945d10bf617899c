package main

import "github.com/ValentinKolb/dRender/cmd"

func main() {
	cmd.Execute()
}
