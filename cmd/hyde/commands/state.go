package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/livetemplate/hyde/internal/uistate"
)

// StateCommand implements the state command.
func StateCommand(args []string) error {
	return runState(os.Stdout, args)
}

func runState(w io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: hyde state <encode|decode> [--json] ARGS...")
	}

	sub := args[0]
	asJSON := false
	var rest []string
	for _, a := range args[1:] {
		if a == "--json" {
			asJSON = true
			continue
		}
		rest = append(rest, a)
	}

	switch sub {
	case "encode":
		return encodeState(w, rest)
	case "decode":
		return decodeState(w, rest, asJSON)
	default:
		return fmt.Errorf("unknown state subcommand: %s", sub)
	}
}

// encodeState prints the cookie value for key=value pairs. Later pairs
// replace earlier ones with the same key.
func encodeState(w io.Writer, pairs []string) error {
	if len(pairs) == 0 {
		return fmt.Errorf("usage: hyde state encode key=value...")
	}

	var doc uistate.Document
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid pair %q: expected key=value", p)
		}
		doc = doc.Set(key, value)
	}

	_, err := fmt.Fprintln(w, uistate.Encode(doc))
	return err
}

// decodeState prints the entries of a cookie value, one key=value per line.
func decodeState(w io.Writer, args []string, asJSON bool) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: hyde state decode [--json] RAW")
	}

	doc := uistate.Decode(args[0])
	if asJSON {
		if doc == nil {
			doc = uistate.Document{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	for _, e := range doc {
		if _, err := fmt.Fprintf(w, "%s=%s\n", e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}
