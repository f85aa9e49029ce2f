package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BuildDefaultHandlerTable registers the demo task bodies the
// dispatcher needs to be runnable end to end: a representative slice
// of the original's basic/cpu_bound/io_bound categories (spec.md §1
// keeps task bodies out of scope, but a dispatcher with an empty
// table can't be exercised or tested). Semantics — parameter
// validation, output shape — follow
// original_source/src/commands/{basic,cpu_bound}/*.c.
//
// checkCanceled is consulted by the sleep handler between ticks; it is
// the one handler in this table that demonstrates cooperative
// cancellation. Pass a no-op returning false when building a table for
// synchronous-only use.
func BuildDefaultHandlerTable(checkCanceled func(ctx context.Context) bool) *HandlerTable {
	table := NewHandlerTable()

	table.Register(HandlerEntry{
		Name:           "echo",
		RequiredParams: []string{"text"},
		Fn:             handleEcho,
	})
	table.Register(HandlerEntry{
		Name:           "reverse",
		RequiredParams: []string{"text"},
		Fn:             handleReverse,
	})
	table.Register(HandlerEntry{
		Name:           "toupper",
		RequiredParams: []string{"text"},
		Fn:             handleToUpper,
	})
	table.Register(HandlerEntry{
		Name:           "hash",
		RequiredParams: []string{"text"},
		Fn:             handleHash,
	})
	table.Register(HandlerEntry{
		Name:           "fibonacci",
		RequiredParams: []string{"num"},
		Fn:             handleFibonacci,
	})
	table.Register(HandlerEntry{
		Name:           "isprime",
		RequiredParams: []string{"num"},
		Fn:             handleIsPrime,
	})
	table.Register(HandlerEntry{
		Name:           "timestamp",
		RequiredParams: nil,
		Fn:             handleTimestamp,
	})
	table.Register(HandlerEntry{
		Name:           "sleep",
		RequiredParams: []string{"seconds"},
		Fn:             sleepHandler(checkCanceled),
	})

	return table
}

func handleEcho(ctx context.Context, params map[string]string) (string, error) {
	return fmt.Sprintf(`{"echo":%q}`, params["text"]), nil
}

func handleReverse(ctx context.Context, params map[string]string) (string, error) {
	text := params["text"]
	runes := []rune(text)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return fmt.Sprintf(`{"input":%q,"output":%q}`, text, string(runes)), nil
}

func handleToUpper(ctx context.Context, params map[string]string) (string, error) {
	text := params["text"]
	return fmt.Sprintf(`{"input":%q,"output":%q}`, text, strings.ToUpper(text)), nil
}

func handleHash(ctx context.Context, params map[string]string) (string, error) {
	text := params["text"]
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf(`{"input":%q,"output":%q}`, text, hex.EncodeToString(sum[:])), nil
}

// handleFibonacci mirrors fibonacci.c's bounds: 0 <= n <= 93 (94 and
// above overflow a 64-bit unsigned Fibonacci number).
func handleFibonacci(ctx context.Context, params map[string]string) (string, error) {
	n, err := strconv.ParseInt(params["num"], 10, 64)
	if err != nil || n < 0 || n > 93 {
		return "", newError(KindInvalidParameter, "'num' must be an integer in [0, 93]")
	}

	var a, b uint64 = 0, 1
	for i := int64(2); i <= n; i++ {
		a, b = b, a+b
	}
	result := b
	if n == 0 {
		result = 0
	} else if n == 1 {
		result = 1
	}

	return fmt.Sprintf(`{"input":%q,"output":"%d"}`, params["num"], result), nil
}

// handleIsPrime mirrors isprime.c's trial-division method (the
// original offers Miller-Rabin as a build-time option; trial division
// is the one this port carries since it needs no big-integer modular
// exponentiation helper and the task sizes here stay small).
func handleIsPrime(ctx context.Context, params map[string]string) (string, error) {
	n, err := strconv.ParseUint(params["num"], 10, 64)
	if err != nil || n < 2 {
		return "", newError(KindInvalidParameter, "'num' must be an integer >= 2")
	}

	return fmt.Sprintf(`{"input":%q,"output":%t,"method":"trial-division"}`, params["num"], isPrimeTrialDivision(n)), nil
}

func isPrimeTrialDivision(n uint64) bool {
	if n < 2 {
		return false
	}
	if n == 2 || n == 3 {
		return true
	}
	if n%2 == 0 || n%3 == 0 {
		return false
	}
	for i := uint64(5); i*i <= n; i += 6 {
		if n%i == 0 || n%(i+2) == 0 {
			return false
		}
	}
	return true
}

func handleTimestamp(ctx context.Context, params map[string]string) (string, error) {
	now := time.Now()
	body, err := json.Marshal(map[string]int64{
		"unix_seconds": now.Unix(),
		"unix_millis":  now.UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// sleepHandler mirrors sleep_cmd.c: sleeps the requested number of
// seconds and reports elapsed milliseconds, but checks checkCanceled
// (and ctx cancellation) between one-second ticks so an async
// submission can be aborted before it finishes the full duration —
// the one cooperating handler the cancel-before-start and
// graceful-shutdown scenarios exercise.
func sleepHandler(checkCanceled func(ctx context.Context) bool) HandlerFn {
	return func(ctx context.Context, params map[string]string) (string, error) {
		seconds, err := strconv.ParseInt(params["seconds"], 10, 64)
		if err != nil || seconds <= 0 {
			return "", newError(KindInvalidParameter, "'seconds' must be a positive integer")
		}

		start := time.Now()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		remaining := seconds
		for remaining > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-ticker.C:
				remaining--
				if checkCanceled != nil && checkCanceled(ctx) {
					return "", newError(KindHandlerFailure, "canceled")
				}
			}
		}

		elapsed := time.Since(start)
		return fmt.Sprintf(`{"seconds":%d,"slept_ms":%d}`, seconds, elapsed.Milliseconds()), nil
	}
}
