// tokend is the operational CLI for the token core: it can self-check a
// configuration and inspect or revoke the refresh-token inventory of
// whichever backend the config points at.
//
//	tokend -config tokend.yaml check
//	tokend list
//	tokend revoke <token>
//	tokend clear [user-id]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/signalhaus/tokend/internal/tokend/app"
	"github.com/signalhaus/tokend/internal/tokend/domain"
	"github.com/signalhaus/tokend/internal/tokend/service"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file; env vars always apply")
	flag.Parse()

	cfg, err := app.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	application, err := app.New(cfg, staticLookup{})
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer func() { _ = application.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "check"
	}

	switch cmd {
	case "check":
		err = runCheck(ctx, application.Service)
	case "list":
		err = runList(ctx, application.Service)
	case "revoke":
		err = runRevoke(ctx, application.Service, flag.Arg(1))
	case "clear":
		err = runClear(ctx, application.Service, flag.Arg(1))
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// staticLookup hands back a principal built from the stored username.
// The CLI has no user directory; embedding deployments wire their own.
type staticLookup struct{}

func (staticLookup) LoadByUsername(_ context.Context, username string) (domain.User, error) {
	return domain.User{ID: checkUserID, Username: username}, nil
}

const checkUserID = int64(1)

// runCheck exercises the full lifecycle against the configured
// backends: sign, validate, parse, then grant and consume a refresh
// token when a store is wired.
func runCheck(ctx context.Context, svc *service.Service) error {
	user := domain.User{
		ID:          checkUserID,
		Username:    "healthcheck",
		Authorities: []string{"ROLE_CHECK"},
	}

	access, err := svc.GenerateAccessToken(user)
	switch {
	case err != nil:
		fmt.Printf("signing:  off (%v)\n", err)
	case !svc.ValidateToken(access.Token):
		return fmt.Errorf("issued token failed validation")
	default:
		parsed, err := svc.ParseUser(access.Token)
		if err != nil {
			return fmt.Errorf("parse issued token: %w", err)
		}
		if !user.Equal(*parsed) {
			return fmt.Errorf("parsed principal mismatch: got %s/%d", parsed.Username, parsed.ID)
		}
		fmt.Printf("signing:  ok (expires in %ds)\n", access.ExpiresIn)
	}

	if !svc.IsRefreshTokenSupported() {
		fmt.Println("refresh:  off")
		return nil
	}

	token, err := svc.GenerateRefreshToken(ctx, user)
	if err != nil {
		return fmt.Errorf("grant refresh token: %w", err)
	}
	got, err := svc.UseRefreshToken(ctx, token)
	if err != nil {
		return fmt.Errorf("use refresh token: %w", err)
	}
	if got == nil {
		return fmt.Errorf("freshly granted refresh token not found")
	}
	if again, err := svc.UseRefreshToken(ctx, token); err != nil {
		return fmt.Errorf("reuse refresh token: %w", err)
	} else if again != nil {
		return fmt.Errorf("refresh token was consumable twice")
	}
	fmt.Println("refresh:  ok")
	return nil
}

func runList(ctx context.Context, svc *service.Service) error {
	all, err := svc.ListRefreshTokens(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Println("no live refresh tokens")
		return nil
	}
	for uid, tokens := range all {
		for _, rt := range tokens {
			fmt.Printf("user %d\t%s\texpires in %ds\n", uid, rt.Token, rt.ExpiresIn)
		}
	}
	return nil
}

func runRevoke(ctx context.Context, svc *service.Service, token string) error {
	if token == "" {
		return fmt.Errorf("usage: tokend revoke <token>")
	}
	existed, err := svc.RevokeRefreshToken(ctx, token)
	if err != nil {
		return err
	}
	if existed {
		fmt.Println("revoked")
	} else {
		fmt.Println("token not found")
	}
	return nil
}

func runClear(ctx context.Context, svc *service.Service, uidArg string) error {
	if uidArg == "" {
		n, err := svc.ClearTokens(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("revoked %d tokens\n", n)
		return nil
	}

	uid, err := strconv.ParseInt(uidArg, 10, 64)
	if err != nil {
		return fmt.Errorf("user id %q: %w", uidArg, err)
	}
	n, err := svc.ClearTokensFor(ctx, domain.User{ID: uid})
	if err != nil {
		return err
	}
	fmt.Printf("revoked %d tokens for user %d\n", n, uid)
	return nil
}
