package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/devserver"
	"github.com/jrsteele09/go-auth-client/internal/config"
)

func main() {
	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName() + " Dev Server")

	handler, err := devserver.New(c, devserver.WithLogger(log.Logger))
	if err != nil {
		return fmt.Errorf("devserver.New: %w", err)
	}

	username := c.GetUsername()
	if username == "" {
		username = "dev@localhost"
	}
	generatedPassword, err := handler.BootstrapUser(username, c.GetPassword())
	if err != nil {
		return fmt.Errorf("bootstrap user: %w", err)
	}
	if generatedPassword != "" {
		log.Info().Str("username", username).Str("password", generatedPassword).
			Msg("dev user created - save this password, it will not be displayed again")
	}

	server := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(server)
	waitForStopSignal()
	returnError = shutdown(server)
	return returnError
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
