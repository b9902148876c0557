package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-user-auth/account"
	"github.com/jrsteele09/go-user-auth/auth"
	"github.com/jrsteele09/go-user-auth/identity"
	"github.com/jrsteele09/go-user-auth/internal/config"
	"github.com/jrsteele09/go-user-auth/password"
	"github.com/jrsteele09/go-user-auth/server"
	"github.com/jrsteele09/go-user-auth/session"
	"github.com/jrsteele09/go-user-auth/token"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	logger := newLogger(c)
	srv, err := buildServer(c, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func buildServer(c config.Config, logger zerolog.Logger) (*server.Server, error) {
	identities := identity.NewInMemoryStore()
	hasher := password.NewHasher(c.GetBcryptCost())

	sessions, err := session.NewManager(session.NewInMemoryRepo(), c.GetSessionTTL())
	if err != nil {
		return nil, err
	}

	engine, err := auth.NewEngine(auth.Deps{
		Identities: identities,
		Hasher:     hasher,
		Sessions:   sessions,
	},
		auth.WithIdentityFields(c.GetIdentityFields()),
		auth.WithStoreTimeout(c.GetStoreTimeout()),
		auth.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	accounts, err := account.NewService(account.Deps{
		Identities: identities,
		Hasher:     hasher,
		Sessions:   sessions,
		Engine:     engine,
		Notifier:   account.LogNotifier{Logger: logger},
	}, account.Policy{
		EnableRegistration:     c.GetEnableRegistration(),
		LoginAfterRegistration: c.GetLoginAfterRegistration(),
		IdentityFields:         c.GetIdentityFields(),
	},
		account.WithStoreTimeout(c.GetStoreTimeout()),
		account.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	// Bearer tokens are only minted when a signing key is configured.
	var tokens *token.Creator
	if key := c.GetTokenSigningKey(); len(key) > 0 {
		tokens, err = token.NewCreator(key, c.GetTokenIssuer(), c.GetTokenTTL())
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn().Msg("TOKEN_SIGNING_KEY not set, API token routes disabled")
	}

	return server.New(c, server.Deps{
		Engine:   engine,
		Accounts: accounts,
		Sessions: sessions,
		Tokens:   tokens,
	}, server.DefaultRedirect(c), logger)
}

func newLogger(c config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if c.GetEnv() == "DEV" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
	return logger
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
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
