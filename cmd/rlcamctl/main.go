// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

// Command rlcamctl validates RLC AM bearer configurations and drives
// end-to-end simulations of an entity pair over a lossy channel.
package main

import (
	"fmt"
	"os"

	"github.com/ranstack/rlcam/cmd/rlcamctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
