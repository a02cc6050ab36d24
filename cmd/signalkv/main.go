// Package main implements the signalkv command-line tool for inspecting and
// manipulating a configured key-value store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/dave-morgan/signalkv"
	"github.com/dave-morgan/signalkv/config"
	"github.com/dave-morgan/signalkv/kvstore"
	"github.com/dave-morgan/signalkv/logging"
	"github.com/dave-morgan/signalkv/stream"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "signalkv"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, args := parseFlags()

	if cliCfg.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}
	if err := validateFlags(cliCfg); err != nil {
		return err
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfiguration(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		fmt.Println("Configuration is valid")
		return nil
	}

	if len(args) == 0 {
		printDetailedHelp()
		return fmt.Errorf("no command given")
	}

	sys, err := signalkv.Open(cfg, signalkv.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := sys.Close(); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	ctx := context.Background()
	opts := kvstore.KeyOptions{
		InstanceID: cliCfg.InstanceID,
		Namespace:  cliCfg.Namespace,
	}

	return dispatch(ctx, sys, args, opts)
}

func loadConfiguration(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func dispatch(ctx context.Context, sys *signalkv.System, args []string, opts kvstore.KeyOptions) error {
	command, args := args[0], args[1:]

	switch command {
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <key>")
		}
		value, found, err := sys.Client.GetString(ctx, args[0], opts)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("key %q not found", args[0])
		}
		fmt.Println(value)
		return nil

	case "set":
		if len(args) != 2 {
			return fmt.Errorf("usage: set <key> <value>")
		}
		return sys.Client.SetString(ctx, args[0], args[1], opts)

	case "del":
		if len(args) != 1 {
			return fmt.Errorf("usage: del <key>")
		}
		return sys.Client.Remove(ctx, args[0], opts)

	case "keys":
		keys, err := sys.Client.AllKeys(ctx, opts)
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Println(key)
		}
		return nil

	case "count":
		count, err := sys.Client.Count(ctx, opts)
		if err != nil {
			return err
		}
		fmt.Println(count)
		return nil

	case "size":
		size, err := sys.Client.TotalSize(ctx, opts)
		if err != nil {
			return err
		}
		fmt.Println(size)
		return nil

	case "clear":
		return sys.Client.ClearAll(ctx, opts)

	case "tail":
		level := logging.LevelVerbose
		if len(args) == 1 {
			parsed, err := logging.ParseLevel(args[0])
			if err != nil {
				return err
			}
			level = parsed
		}
		return tailLogs(sys, level)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// tailLogs streams storage diagnostics to stdout until interrupted.
func tailLogs(sys *signalkv.System, level logging.Level) error {
	router := sys.Logs.Logger("")
	router.Enable(logging.Config{Level: level})
	defer router.Disable()

	sub := router.Logs().Subscribe(stream.Observer[logging.Event]{
		Next: func(event logging.Event) {
			fmt.Printf("%d [%s] instance=%q %s\n",
				event.Timestamp, event.Level, event.InstanceID, event.Message)
		},
	})
	defer sub.Unsubscribe()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	return nil
}
