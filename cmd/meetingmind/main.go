// Command meetingmind runs the meeting intelligence pipeline: the operator API,
// the job workers and the maintenance commands around them.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
