// Command stockctl is a terminal console for the stock screen. Filters are
// typed like in the browser, so search and price changes are debounced.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"quantum-stock/internal/auth"
	"quantum-stock/internal/config"
	"quantum-stock/internal/fetcher"
	"quantum-stock/internal/logger"
	"quantum-stock/internal/querystate"
	"quantum-stock/internal/repository"
	"quantum-stock/internal/stock"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	address := flag.String("address", "/stock", "initial address, e.g. /stock?category=BOOKS&page=2")
	logFile := flag.String("log", "stockctl.log", "log file")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	// Logs go to a file so they do not interleave with the console
	log, err := logger.NewWithOptions(logger.Options{
		Env:         cfg.Server.Env,
		Level:       os.Getenv("LOG_LEVEL"),
		OutputPaths: []string{*logFile},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, *address, log); err != nil {
		log.Error("Console stopped", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, rawAddress string, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	address, err := querystate.NewAddress(rawAddress)
	if err != nil {
		return err
	}

	parser, err := auth.NewParserFor(cfg.Keycloak.ClientID, cfg.JWT.Secret, cfg.Keycloak.PublicKey)
	if err != nil {
		return err
	}

	repo := repository.NewProductRepository(cfg.API.URL, cfg.API.Timeout, log)
	pages := fetcher.New(repo, fetcher.Options{DedupInterval: cfg.Stock.DedupInterval, Logger: log})
	ctrl := stock.New(ctx, address, pages, repo, stock.Options{
		PageSize:        cfg.Stock.PageSize,
		SearchDelay:     cfg.Stock.SearchDebounce,
		PriceDelay:      cfg.Stock.PriceDebounce,
		SearchMinLength: cfg.Stock.SearchMinLength,
		Logger:          log,
	})
	defer ctrl.Close()

	c := &console{
		ctx:    ctx,
		ctrl:   ctrl,
		parser: parser,
		out:    os.Stdout,
	}

	fmt.Fprintln(os.Stdout, "Quantum Stock · escribe help para ver los comandos")
	if token := os.Getenv("STOCK_TOKEN"); token != "" {
		if err := c.signIn(token); err != nil {
			fmt.Fprintln(os.Stdout, err)
		}
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		fmt.Fprint(os.Stdout, "stock> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stdout)
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			err := c.exec(line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintln(os.Stdout, err)
			}
		}
	}
}
