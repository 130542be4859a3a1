// Command ildump inspects managed modules: types, members, IL bodies,
// references and custom attributes.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
