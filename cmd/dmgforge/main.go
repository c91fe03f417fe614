package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/c2h5oh/datasize"

	"github.com/dmgforge/dmgforge/lib/builder"
	"github.com/dmgforge/dmgforge/lib/declaration"
	"github.com/dmgforge/dmgforge/lib/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-v] <declaration.json|yaml> <output.dmg>\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		return fmt.Errorf("expected a declaration file and an output path")
	}
	declPath, output := flag.Arg(0), flag.Arg(1)

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := logger.New(level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.AddToContext(ctx, log)

	decl, err := declaration.Load(declPath)
	if err != nil {
		return err
	}

	b := builder.New(builder.Options{
		Progress: func(stage string) {
			fmt.Printf("» %s\n", stage)
		},
	})

	result, err := b.Build(ctx, decl, output)
	if err != nil {
		return err
	}

	for _, d := range result.Diagnostics {
		fmt.Fprintf(os.Stderr, "warning: %s\n", d)
	}
	fmt.Printf("✓ %s (%s)\n", result.ImagePath, datasize.ByteSize(result.SizeBytes).HumanReadable())
	return nil
}
