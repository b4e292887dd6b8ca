// Command hyde serves markdown pages whose collapsible sections, icons and
// images remember their state in a cookie.
package main

import (
	"fmt"
	"os"

	"github.com/livetemplate/hyde/cmd/hyde/commands"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "serve":
		err = commands.ServeCommand(args)
	case "state":
		err = commands.StateCommand(args)
	case "version":
		fmt.Printf("hyde version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("hyde - Markdown pages that remember what you opened")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  hyde serve [directory]            Start the page server")
	fmt.Println("  hyde state encode key=value...    Print the cookie form of a state document")
	fmt.Println("  hyde state decode RAW             Print the entries of a cookie value")
	fmt.Println("  hyde version                      Show version")
	fmt.Println("  hyde help                         Show this help")
	fmt.Println()
	fmt.Println("Serve flags:")
	fmt.Println("  -p, --port PORT      Listen port (default 8080, env HYDE_PORT)")
	fmt.Println("      --host HOST      Listen host (default localhost, env HYDE_HOST)")
	fmt.Println("  -c, --config FILE    Config file (default hyde.yaml in the directory)")
	fmt.Println("  -w, --watch          Reload pages when sources change")
	fmt.Println("      --no-watch       Disable live reload")
	fmt.Println("  -d, --debug          Verbose logging")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  hyde serve                        # Serve current directory")
	fmt.Println("  hyde serve ./docs --port 3000     # Serve docs on port 3000")
	fmt.Println("  hyde state encode foo=false bar=img/a.png")
	fmt.Println("  hyde state decode 'foo~false+bar~img/a.png'")
}
