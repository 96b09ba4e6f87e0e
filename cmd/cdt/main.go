// Command cdt drives a Chrome page over the DevTools protocol.
package main

import "github.com/devicelab-dev/cdt/pkg/cli"

func main() {
	cli.Execute()
}
