package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	kgo "github.com/segmentio/kafka-go"
	"golang.org/x/sys/unix"

	"postflow/internal/config"
	"postflow/internal/media"
	"postflow/internal/services"
)

const checkTimeout = 10 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckPlatform verifies platform configuration and, when a verifier is
// provided, that the credentials can read the account.
func CheckPlatform(ctx context.Context, cfg *config.Config, verifier AccountVerifier) Result {
	const name = "Platform"

	if err := cfg.PlatformReady(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if verifier == nil {
		return Result{Name: name, Passed: true, Detail: "Configured (not verified)"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	account, err := verifier.Verify(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	label := account.Username
	if label == "" {
		label = account.ID
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Authenticated as %s", label)}
}

// CheckObjectStore verifies the configured bucket is reachable.
func CheckObjectStore(ctx context.Context, bucket string, store media.ObjectStore) Result {
	const name = "Object storage"

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := store.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Bucket %s reachable", bucket)}
}

// CheckBrokers dials each configured Kafka broker and passes when at least
// one answers.
func CheckBrokers(ctx context.Context, brokers []string) Result {
	const name = "Event brokers"

	var failures []string
	for _, broker := range brokers {
		broker = strings.TrimSpace(broker)
		if broker == "" {
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		conn, err := kgo.DialContext(checkCtx, "tcp", broker)
		cancel()
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %s", broker, summarizeError(err)))
			continue
		}
		_ = conn.Close()
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", broker)}
	}
	if len(failures) == 0 {
		return Result{Name: name, Detail: "no brokers configured"}
	}
	return Result{Name: name, Detail: strings.Join(failures, "; ")}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, services.ErrTimeout) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	if hint := services.Details(err).Hint; hint != "" && errors.Is(err, services.ErrConfiguration) {
		return fmt.Sprintf("%v (%s)", err, hint)
	}
	return err.Error()
}
