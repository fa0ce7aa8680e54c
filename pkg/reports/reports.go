package reports

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/event"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/sloger"
)

var logger *slog.Logger

var (
	mu        sync.RWMutex
	Reporters []event.Publisher[*Report]
)

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

func Register(r event.Publisher[*Report]) {
	mu.Lock()
	defer mu.Unlock()
	Reporters = append(Reporters, r)
}

// Publish hands the report to every registered reporter, retrying a failing reporter up to event.MaxRetries times.
func Publish(ctx context.Context, r *Report) {
	mu.RLock()
	reporters := Reporters
	mu.RUnlock()

	for _, reporter := range reporters {
		publishWithRetry(ctx, reporter, r)
	}
}

func publishWithRetry(ctx context.Context, reporter event.Publisher[*Report], r *Report) {
	for attempt := 0; ; attempt++ {
		err := reporter.Publish(ctx, r)
		if err == nil {
			return
		}
		logger.Error("Failed to report", "report", r.Identifier(), "attempt", attempt, "err", err)
		if attempt >= event.MaxRetries || ctx.Err() != nil {
			return
		}
	}
}

func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, r := range Reporters {
		r.Close()
	}
	Reporters = []event.Publisher[*Report]{}
}
