// Package main provides the Loom CLI.
package main

import (
	"fmt"
	"os"

	"github.com/loom-ml/loom/compile"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("Loom %s\n", version)
			return
		case "cache":
			if err := cacheCmd(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "loom: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	fmt.Println("Loom - Graph Compilation for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version        Show version")
	fmt.Println("  cache dir      Print the artifact cache directory")
	fmt.Println("  cache purge    Delete cached artifacts")
}

func cacheCmd(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: loom cache <dir|purge>")
	}

	c, err := compile.ArtifactCache(compile.FromEnv())
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("artifact caching is disabled")
	}

	switch args[0] {
	case "dir":
		fmt.Println(c.Dir())
		return nil
	case "purge":
		n, err := c.Purge()
		if err != nil {
			return err
		}
		fmt.Printf("removed %d artifacts from %s\n", n, c.Dir())
		return nil
	default:
		return fmt.Errorf("unknown cache command %q", args[0])
	}
}
