// Package fitbyte provides a Go client for the Fitbit Web API with OAuth2
// authentication.
//
// # Overview
//
// The client owns one user's access credential. It obtains it through either
// the authorization code grant or the implicit grant, refreshes it when it
// expires, and rewrites the keys of request and response bodies between
// Fitbit's camelCase and the snake_case most callers prefer.
//
// # Features
//
//   - OAuth2 authorization code and implicit grants with automatic refresh
//   - Generic Get, Post and Delete over any API path
//   - Response key normalization (snake_case, symbolic keys) per client or per call
//   - Built-in rate limiting that honors Fitbit's quota headers
//   - Structured logging support via Go's slog package
//
// # Quick Start
//
// Register an application at https://dev.fitbit.com and send the user to the
// authorization page:
//
//	config := &fitbyte.Config{
//		ClientID:     "your-client-id",
//		ClientSecret: "your-client-secret",
//		RedirectURI:  "http://localhost:1234/callback",
//	}
//
//	client, err := fitbyte.NewClient(ctx, config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Println("Visit:", client.AuthPageLink())
//
// Exchange the code Fitbit delivers to the redirect URI:
//
//	cred, err := client.GetToken(ctx, code)
//	if err != nil {
//		log.Fatal(err)
//	}
//	// Persist cred.RefreshToken and cred.UserID for the next run.
//
// On the next run, pass the saved refresh token back in and the client is
// ready immediately:
//
//	config.RefreshToken = savedRefreshToken
//	client, err := fitbyte.NewClient(ctx, config)
//
// Fitbit rotates refresh tokens on every exchange, so save Credential()
// again after each run.
//
// # Implicit Grant
//
// With GrantType set to types.GrantImplicit, AccessToken and UserID are
// required and no request is made during construction. The token is never
// refreshed; once Fitbit rejects it, the user has to authorize again.
//
// # Requests
//
//	goal, err := client.Get(ctx, "user/-/sleep/goal.json", nil)
//
//	_, err = client.Post(ctx, "user/-/sleep/goal.json",
//		value.NewObject(value.Member{Key: value.StringKey("min_duration"), Value: value.Int(420)}), nil)
//
// Paths are relative to the API version. Outgoing body keys are always sent
// as camelCase. Response keys are converted to snake_case when SnakeCase is
// set and turned into symbolic keys when SymbolizeKeys is set; a
// RequestOptions value overrides either for a single call. A 204 response
// yields a null Value.
//
// # Error Handling
//
// The library uses specific error types from pkg/errors:
//
//	body, err := client.Get(ctx, "user/-/profile.json", nil)
//	if err != nil {
//		switch e := err.(type) {
//		case *errors.ConfigError:
//			// Missing or invalid configuration
//		case *errors.AuthError:
//			// The token endpoint rejected the exchange or refresh
//		case *errors.RequestError:
//			// Network failure
//		case *errors.APIError:
//			// Fitbit answered with a non-2xx status; body holds the parsed payload
//			log.Printf("status %d: %s", e.StatusCode, e.Message)
//		case *errors.ParseError:
//			// A 2xx response was not valid JSON
//		case *errors.StateError:
//			// No credential yet
//		}
//	}
//
// # Logging
//
// Enable debug logging by providing a logger in the config:
//
//	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
//		Level: slog.LevelDebug,
//	}))
//
//	config := &fitbyte.Config{
//		// ... other config ...
//		Logger: logger,
//	}
//
// Token values are never logged.
//
// # Fitbit API Documentation
//
// For endpoints, parameters and responses, refer to
// https://dev.fitbit.com/build/reference/web-api/.
package fitbyte
