package core

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Arg   string
	Cause string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Cause)
}

// Options holds the parsed CLI arguments.
type Options struct {
	PostURL   string
	ServerURL string
	OutDir    string
	Bundle    bool
}

// ParseArgs parses command-line arguments:
//
//	snapfetch [-server url] [-o dir] [-zip] <post-url>
func ParseArgs(args []string) (*Options, error) {
	opts := &Options{
		ServerURL: "http://localhost:8080",
		OutDir:    ".",
	}

	i := 0
	for i < len(args) {
		arg := args[i]
		switch arg {
		case "-server":
			if i+1 >= len(args) {
				return nil, &ValidationError{Arg: arg, Cause: "missing server URL"}
			}
			opts.ServerURL = strings.TrimRight(args[i+1], "/")
			i += 2
		case "-o":
			if i+1 >= len(args) {
				return nil, &ValidationError{Arg: arg, Cause: "missing output directory"}
			}
			opts.OutDir = args[i+1]
			i += 2
		case "-zip":
			opts.Bundle = true
			i++
		default:
			if strings.HasPrefix(arg, "-") {
				return nil, &ValidationError{Arg: arg, Cause: "unknown flag"}
			}
			if opts.PostURL != "" {
				return nil, &ValidationError{Arg: arg, Cause: "only one post URL allowed"}
			}
			opts.PostURL = arg
			i++
		}
	}

	if opts.PostURL == "" {
		return nil, &ValidationError{Arg: "<post-url>", Cause: "no post URL provided"}
	}

	return opts, nil
}
