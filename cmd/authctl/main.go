// Command authctl drives an authcore server from the terminal. The
// credential cookie is kept in the user's config directory between runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/panyam/authcore/client"
	"github.com/panyam/authcore/client/stores/fs"
)

func main() {
	server := flag.String("server", envOr("AUTHCORE_SERVER", "http://localhost:5000"), "authcore server URL")
	credPath := flag.String("credentials", "", "credentials file (default ~/.config/authcore/credentials.json)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: authctl [flags] <command> [args]\n\n%s\n", usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	store, err := fs.Open(*credPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := NewApp(client.NewAuthClient(*server, store), os.Stdin, os.Stdout)
	if err := app.Run(ctx, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
