package login

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/openbiotel/biotel-monitor-go/log"
	"github.com/openbiotel/biotel-monitor-go/pkg/auth"
	"github.com/openbiotel/biotel-monitor-go/pkg/cmd/common"
	"github.com/openbiotel/biotel-monitor-go/pkg/config"
)

var manual bool

func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "signs in against the identity provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&manual, "manual",
		false,
		"paste the redirect URL instead of running the loopback listener")
	cmd.Flags().StringVar(&config.CallbackTimeout, "callback-timeout",
		"5m",
		"how long to wait for the provider redirect")
	return cmd
}

func runLogin(ctx context.Context) error {
	common.InitLogger()

	session, err := common.NewSession(ctx)
	if err != nil {
		return err
	}
	if session.IsSignedIn() {
		fmt.Println("Already signed in. Run 'btm logout' first to switch accounts.")
		return nil
	}

	authURL, err := session.BeginSignIn()
	if err != nil {
		return err
	}
	fmt.Println("Open this URL in your browser to sign in:")
	fmt.Println()
	fmt.Println("  " + authURL)
	fmt.Println()

	if manual {
		err = completeManually(ctx, session)
	} else {
		err = completeViaLoopback(ctx, session)
	}
	if err != nil {
		var authErr *auth.AuthError
		if errors.As(err, &authErr) {
			// non-fatal: the session stays signed out, the user may retry
			fmt.Fprintf(os.Stderr, "Sign-in failed: %s\n", authErr)
		}
		return err
	}

	fmt.Printf("Signed in (role: %s).\n", session.CurrentRole())
	return nil
}

func completeManually(ctx context.Context, session *auth.Session) error {
	fmt.Print("Paste the full redirect URL here: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	callback, err := url.Parse(strings.TrimSpace(line))
	if err != nil {
		return err
	}
	handled, err := session.CompleteSignIn(ctx, callback)
	if err != nil {
		return err
	}
	if !handled {
		return errors.New("the pasted URL does not contain an authorization response")
	}
	return nil
}

// completeViaLoopback serves the registered redirect URI until the provider
// redirects back or the timeout expires.
//
//nolint:funlen // linear setup/teardown
func completeViaLoopback(ctx context.Context, session *auth.Session) error {
	redirect, err := url.Parse(config.RedirectURI)
	if err != nil {
		return fmt.Errorf("invalid redirect URI: %w", err)
	}
	timeout, err := time.ParseDuration(config.CallbackTimeout)
	if err != nil {
		timeout = 5 * time.Minute
	}

	results := make(chan error, 1)
	router := mux.NewRouter()
	router.HandleFunc(redirect.Path, callbackHandler(session, results))

	server := &http.Server{
		Addr:              redirect.Host,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if srvErr := server.ListenAndServe(); srvErr != nil &&
			!errors.Is(srvErr, http.ErrServerClosed) {
			sendResult(results, srvErr)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if sdErr := server.Shutdown(shutdownCtx); sdErr != nil {
			log.Warn("could not shut down callback listener", log.ErrorField(sdErr))
		}
	}()

	select {
	case err := <-results:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for the provider redirect after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func callbackHandler(session *auth.Session, results chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handled, cbErr := session.CompleteSignIn(r.Context(), r.URL)
		switch {
		case cbErr != nil:
			http.Error(w, cbErr.Error(), http.StatusBadRequest)
			sendResult(results, cbErr)
		case !handled:
			// not an authorization response; keep waiting
			fmt.Fprint(w, "Waiting for the identity provider redirect...")
		default:
			fmt.Fprint(w, "Signed in. You can close this tab.")
			sendResult(results, nil)
		}
	}
}

// sendResult delivers at most one result. A second redirect (browser retry,
// reloaded tab) must not block its handler goroutine on a full channel.
func sendResult(results chan<- error, err error) {
	select {
	case results <- err:
	default:
	}
}
