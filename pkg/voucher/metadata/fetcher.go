package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"

	"github.com/gideon-vouchers/voucher-server/pkg/cache"
	"github.com/gideon-vouchers/voucher-server/pkg/metrics"
	"github.com/gideon-vouchers/voucher-server/pkg/netutil"
	"github.com/gideon-vouchers/voucher-server/pkg/rate"
	"github.com/gideon-vouchers/voucher-server/pkg/retry"
	"github.com/gideon-vouchers/voucher-server/pkg/retry/backoff"
)

const (
	metricsStructName = "voucher.metadata.fetcher"

	maxDocumentSize = 1 << 20
)

var (
	ErrInvalidUri = errors.New("invalid metadata uri")
	ErrNotJSON    = errors.New("metadata is not json")
	ErrNotFound   = errors.New("metadata not found")
)

// statusError is returned for non-200 responses. Only server errors are
// retried.
type statusError struct {
	code int
}

func (e statusError) Error() string {
	return fmt.Sprintf("received non-200 status code: %d", e.code)
}

// Fetcher downloads and caches voucher metadata documents.
type Fetcher struct {
	log  *logrus.Entry
	conf *conf

	httpClient *http.Client
	cache      cache.Cache[*Document]
	limiter    rate.Limiter
}

func NewFetcher(configProvider ConfigProvider) *Fetcher {
	return NewFetcherWithClient(http.DefaultClient, configProvider)
}

func NewFetcherWithClient(httpClient *http.Client, configProvider ConfigProvider) *Fetcher {
	ctx := context.Background()
	conf := configProvider()

	return &Fetcher{
		log:        logrus.StandardLogger().WithField("type", "voucher/metadata/fetcher"),
		conf:       conf,
		httpClient: httpClient,
		cache:      cache.NewCache[*Document](int(conf.cacheBudget.Get(ctx))),
		limiter:    rate.NewLocalRateLimiter(xrate.Limit(conf.requestsPerHost.Get(ctx))),
	}
}

// Fetch returns the metadata document at uri. Only responses declaring an
// application/json content type are accepted.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (*Document, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Fetch")
	defer tracer.End()

	log := f.log.WithFields(logrus.Fields{
		"method": "Fetch",
		"uri":    uri,
	})

	doc, err := f.fetch(ctx, uri)
	if err != nil {
		log.WithError(err).Debug("failed to fetch metadata")
		tracer.OnError(err)
		return nil, err
	}
	return doc, nil
}

func (f *Fetcher) fetch(ctx context.Context, uri string) (*Document, error) {
	if cached, ok := f.cache.Retrieve(uri); ok {
		return cached.clone(), nil
	}

	host, err := netutil.HostKey(uri)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidUri, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, f.conf.fetchTimeout.Get(ctx))
	defer cancel()

	var doc *Document
	_, err = retry.Retry(
		func() error {
			if err := f.limiter.Wait(ctx, host); err != nil {
				return err
			}

			doc, err = f.get(ctx, uri)
			return err
		},
		retry.Context(ctx),
		retry.RetryIf(isRetriable),
		retry.Limit(uint(f.conf.maxAttempts.Get(ctx))),
		retry.BackoffWithJitter(backoff.BinaryExponential(250*time.Millisecond), 2*time.Second, 0.1),
	)
	if err != nil {
		return nil, err
	}

	f.cache.Upsert(uri, doc, 1)
	return doc.clone(), nil
}

func (f *Fetcher) get(ctx context.Context, uri string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidUri, err.Error())
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to make request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, statusError{code: resp.StatusCode}
	}

	if !isJSONContentType(resp.Header.Get("Content-Type")) {
		return nil, ErrNotJSON
	}

	var doc Document
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&doc); err != nil {
		return nil, errors.Wrap(ErrNotJSON, err.Error())
	}
	doc.normalize()

	return &doc, nil
}

func isJSONContentType(value string) bool {
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.Contains(strings.ToLower(value), "application/json")
	}
	return mediaType == "application/json"
}

func isRetriable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrNotJSON) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidUri) {
		return false
	}

	var statusErr statusError
	if errors.As(err, &statusErr) {
		return statusErr.code >= http.StatusInternalServerError || statusErr.code == http.StatusTooManyRequests
	}
	return true
}

func (d *Document) clone() *Document {
	cloned := *d
	return &cloned
}
