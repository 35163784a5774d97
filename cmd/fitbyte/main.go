package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	fitbyte "github.com/jamesprial/go-fitbyte"
	pkgerrs "github.com/jamesprial/go-fitbyte/pkg/errors"
	"github.com/jamesprial/go-fitbyte/pkg/types"
	"github.com/jamesprial/go-fitbyte/pkg/value"
)

const usage = `usage: fitbyte [flags] <command> [args]

commands:
  auth-url                  print the authorization page link
  token <code>              exchange an authorization code and save the credential
  refresh                   refresh the saved credential
  get <path>                GET a resource path, e.g. user/-/profile.json
  post <path> [key=value]   POST form fields to a resource path
  delete <path>             DELETE a resource path

flags:
`

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults to FITBYTE_* environment variables)")
	tokenFile := flag.String("token-file", "fitbyte-token.yaml", "file the credential is saved to and restored from")
	dotenv := flag.Bool("dotenv", true, "load a .env file before reading the environment")
	snake := flag.Bool("snake", false, "convert response keys to snake_case")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	config, err := loadConfig(*configPath, *dotenv)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config.Logger = logger
	if *snake {
		config.SnakeCase = fitbyte.Bool(true)
	}

	saved, err := readCredential(*tokenFile)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *tokenFile, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	command, args := flag.Arg(0), flag.Args()[1:]

	// Commands that obtain a credential must not try to restore a stale one.
	if saved != nil && command != "auth-url" && command != "token" {
		switch config.GrantType {
		case types.GrantImplicit:
			config.AccessToken, config.UserID = saved.AccessToken, saved.UserID
		default:
			if config.RefreshToken == "" {
				config.RefreshToken = saved.RefreshToken
			}
		}
	}

	client, err := fitbyte.NewClient(ctx, config)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	if err := execute(ctx, client, command, args, *tokenFile, logger); err != nil {
		var apiErr *pkgerrs.APIError
		if errors.As(err, &apiErr) {
			log.Fatalf("Fitbit returned %d: %s", apiErr.StatusCode, apiErr.Body)
		}
		log.Fatal(err)
	}
}

// execute runs command and then saves the client's credential. Fitbit
// rotates refresh tokens on every exchange, so the save happens whether or
// not the command succeeded.
func execute(ctx context.Context, client *fitbyte.Client, command string, args []string, tokenFile string, logger *slog.Logger) error {
	runErr := run(ctx, client, command, args)

	cred, ok := client.Credential()
	if !ok {
		return runErr
	}
	if err := writeCredential(tokenFile, cred); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to save credential: %w", err))
	}
	logger.Debug("credential saved", "path", tokenFile, "user_id", cred.UserID)
	return runErr
}

func run(ctx context.Context, client *fitbyte.Client, command string, args []string) error {
	switch command {
	case "auth-url":
		state := uuid.NewString()
		fmt.Println(client.AuthPageLinkWithState(state))
		fmt.Fprintf(os.Stderr, "state: %s\n", state)
		return nil

	case "token":
		if len(args) != 1 {
			return errors.New("token requires the authorization code")
		}
		cred, err := client.GetToken(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Authorized user %s\n", cred.UserID)
		return nil

	case "refresh":
		cred, err := client.RefreshToken(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Refreshed token for user %s, expires %s\n", cred.UserID, cred.Expiry.Format("2006-01-02 15:04:05"))
		return nil

	case "get", "delete":
		if len(args) != 1 {
			return fmt.Errorf("%s requires a resource path", command)
		}
		call := client.Get
		if command == "delete" {
			call = client.Delete
		}
		resp, err := call(ctx, args[0], nil)
		if err != nil {
			return err
		}
		return printValue(resp)

	case "post":
		if len(args) < 1 {
			return errors.New("post requires a resource path")
		}
		body, err := parseFields(args[1:])
		if err != nil {
			return err
		}
		resp, err := client.Post(ctx, args[0], body, nil)
		if err != nil {
			return err
		}
		return printValue(resp)
	}

	return fmt.Errorf("unknown command %q", command)
}

func loadConfig(path string, dotenv bool) (*fitbyte.Config, error) {
	if path != "" {
		return fitbyte.LoadConfigFile(path)
	}
	return fitbyte.ConfigFromEnv(dotenv)
}

// parseFields turns key=value arguments into an object body. Values that
// look like numbers or booleans keep that type.
func parseFields(fields []string) (value.Value, error) {
	members := make([]value.Member, 0, len(fields))
	for _, field := range fields {
		k, v, ok := strings.Cut(field, "=")
		if !ok || k == "" {
			return value.Value{}, fmt.Errorf("invalid field %q: expected key=value", field)
		}
		members = append(members, value.Member{Key: value.StringKey(k), Value: scalar(v)})
	}
	return value.NewObject(members...), nil
}

func scalar(s string) value.Value {
	if b, err := strconv.ParseBool(s); err == nil {
		return value.NewBool(b)
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil && json.Valid([]byte(s)) {
		return value.NewNumber(s)
	}
	return value.NewString(s)
}

func printValue(v value.Value) error {
	data, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(os.Stdout)
	return err
}

func readCredential(path string) (*types.Credential, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cred types.Credential
	if err := yaml.Unmarshal(data, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func writeCredential(path string, cred types.Credential) error {
	data, err := yaml.Marshal(cred)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
