package bazaar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"tcaqs/internal/telemetry"
	"tcaqs/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("tcaqs.bazaar")

const (
	report_client_fetch       = "client.fetch"
	report_client_fetch_range = "client.fetch-range"
)

const DefaultBaseUrl = "https://www.tibia.com"

// ErrListingNotFound is returned when the server answers with a page that
// isn't an auction listing (expired or unknown id).
var ErrListingNotFound = errors.New("listing not found")

type ClientOptions struct {
	BaseUrl string
	// OutputDir receives one <id>.html per fetched listing.
	OutputDir string
	Timeout   time.Duration
	// DumpDir, when set, receives a text dump of every http exchange.
	DumpDir string
}

// Client downloads archived listing pages so that they can be ingested later.
type Client struct {
	http      *resty.Client
	outputDir string
	tel       telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("an output directory was not specified")
	}
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	err := os.MkdirAll(opts.OutputDir, 0755)
	if err != nil {
		return nil, err
	}

	tel = telemetry.NewScopedAPI("bazaar", tel)

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(opts.Timeout)
	telemetry.InstrumentResty(client, tel)

	var output restyutil.InstrumentOutput
	if opts.DumpDir != "" {
		fsOutput, err := restyutil.NewFilesystemOutput(opts.DumpDir)
		if err != nil {
			return nil, err
		}
		output = fsOutput
	}
	restyutil.InstrumentClient(client, tracer, output)

	return &Client{
		http:      client,
		outputDir: opts.OutputDir,
		tel:       tel,
	}, nil
}

// Path returns where the listing of id is stored.
func (c *Client) Path(id int64) string {
	return filepath.Join(c.outputDir, fmt.Sprintf("%d.html", id))
}

// Fetch downloads the listing page of an auction and stores it under Path(id).
func (c *Client) Fetch(ctx context.Context, id int64) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"subtopic":  "pastcharactertrades",
			"page":      "details",
			"auctionid": strconv.FormatInt(id, 10),
		}).
		Get("/charactertrade/")
	if err != nil {
		c.tel.ReportBroken(report_client_fetch, err, id)
		return err
	}
	if res.StatusCode() != http.StatusOK {
		err := fmt.Errorf("fetch listing %d: status %d", id, res.StatusCode())
		c.tel.ReportWarning(report_client_fetch, err)
		return err
	}

	body := res.Body()
	_, err = ParseBytes(body)
	if err != nil {
		c.tel.ReportDebug("listing did not parse", id, err)
		return fmt.Errorf("fetch listing %d: %w", id, ErrListingNotFound)
	}

	return os.WriteFile(c.Path(id), body, 0644)
}

type FetchReport struct {
	Fetched int
	Skipped int
	Failed  []int64
}

// FetchRange fetches every id with at most `concurrency` requests in flight,
// ids that already have a stored page are skipped.
func (c *Client) FetchRange(ctx context.Context, ids []int64, concurrency int) FetchReport {
	if concurrency < 1 {
		concurrency = 1
	}

	var report FetchReport
	lock := sync.Mutex{}
	wg := sync.WaitGroup{}
	sem := make(chan struct{}, concurrency)

	for _, id := range ids {
		_, err := os.Stat(c.Path(id))
		if err == nil {
			report.Skipped++
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			lock.Lock()
			report.Failed = append(report.Failed, id)
			lock.Unlock()
			continue
		}

		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			defer func() { <-sem }()

			err := c.Fetch(ctx, id)

			lock.Lock()
			defer lock.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, id)
				return
			}
			report.Fetched++
		}(id)
	}
	wg.Wait()

	c.tel.ReportCount(report_client_fetch_range, int64(report.Fetched))
	return report
}
