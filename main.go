package main

import "github.com/audiolibrelab/speaktranslate/cmd"

func main() {
	cmd.Execute()
}
