// Vigil - dead man's switch for a daily quiet window
package main

import "github.com/lcrostarosa/vigil/internal/cli"

var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.Execute()
}
