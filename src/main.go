// Package main is the entry point for the kvs command line tool
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/phuslu/log"

	"logkv/src/constants"
	"logkv/src/store"
)

const usage = `kvs - embedded log-structured key-value store

Usage:
  kvs [-dir DIR] [-log-level LEVEL] <command> [arguments]

Commands:
  get <KEY>          Print the value of KEY
  set <KEY> <VALUE>  Store VALUE under KEY
  rm <KEY>           Remove KEY

Flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("kvs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", constants.DBPath, "Data directory")
	level := fs.String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	command, rest := fs.Arg(0), fs.Args()
	if len(rest) > 0 {
		rest = rest[1:]
	}

	want := map[string]int{"get": 1, "set": 2, "rm": 1}
	n, ok := want[command]
	if !ok || len(rest) != n {
		if command != "" && !ok {
			fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		}
		fs.Usage()
		return 2
	}

	options := store.DefaultOptions
	options.DirPath = *dir
	options.Logger = &log.Logger{
		Level:  log.ParseLevel(*level),
		Writer: &log.IOWriter{Writer: stderr},
	}

	kvStore, err := store.Open(options)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open store: %v\n", err)
		return 1
	}
	defer kvStore.Close()

	switch command {
	case "get":
		value, found, err := kvStore.Get(rest[0])
		if err != nil {
			fmt.Fprintf(stderr, "Failed to get: %v\n", err)
			return 1
		}
		if !found {
			fmt.Fprintln(stdout, "Key not found")
			return 0
		}
		fmt.Fprintln(stdout, value)

	case "set":
		if err := kvStore.Set(rest[0], rest[1]); err != nil {
			fmt.Fprintf(stderr, "Failed to set: %v\n", err)
			return 1
		}

	case "rm":
		if err := kvStore.Remove(rest[0]); err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				fmt.Fprintln(stdout, "Key not found")
				return 1
			}
			fmt.Fprintf(stderr, "Failed to remove: %v\n", err)
			return 1
		}
	}

	return 0
}
