// Command kansoku tails a jikan report file: it polls the file's
// modification time and reprints the whole report whenever it changes.
// Run it in a second terminal next to an active session:
//
//	kansoku jikan-20260829-091500/dev.profile
package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

func main() {
	interval := flag.Duration("interval", time.Second, "poll interval")
	flag.Parse()

	path := flag.Arg(0)
	if path == "" {
		fmt.Fprintln(os.Stderr, "usage: kansoku [-interval 1s] <report-file>")
		os.Exit(2)
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kansoku: %v\n", err)
		os.Exit(1)
	}

	reprint(path)
	lastMod := info.ModTime()
	for {
		time.Sleep(*interval)
		info, err := os.Stat(path)
		if err != nil {
			// The writer replaces the file by rename; a missed stat between
			// rename steps is transient.
			continue
		}
		if info.ModTime().After(lastMod) {
			lastMod = info.ModTime()
			reprint(path)
		}
	}
}

func reprint(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kansoku: %v\n", err)
		return
	}
	fmt.Printf("--- %s ---\n%s", time.Now().Format(time.TimeOnly), data)
}
