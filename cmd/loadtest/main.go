// Команда loadtest создаёт нагрузку на gRPC API заказов и печатает сводку по задержкам.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/golang-sql/civil"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
	grpcsvc "github.com/vladislavdragonenkov/inventory/internal/service/grpc"
)

const (
	locationsPerRun = 16
	searchPageSize  = 50
)

// Режимы нагрузки.
const (
	modeCreate       = "create"
	modeCreateSearch = "create-search"
	modeBulk         = "bulk"
)

type options struct {
	addr        string
	mode        string
	requests    int
	duration    time.Duration
	workers     int
	timeout     time.Duration
	bulkSize    int
	product     string
	locationTag string
	report      string
}

// orderClient — часть gRPC-клиента, которую использует нагрузочный тест.
type orderClient interface {
	CreateOrder(ctx context.Context, in *grpcsvc.CreateOrderRequest, opts ...grpc.CallOption) (*domain.Order, error)
	SearchOrders(ctx context.Context, in *domain.SearchCriteria, opts ...grpc.CallOption) (*domain.SearchResult, error)
	UpsertOrders(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[domain.Order, grpcsvc.UpsertOrdersResponse], error)
}

func main() {
	opts, err := parseOptions(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("invalid options")
	}

	conn, err := grpc.NewClient(opts.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.WithError(err).Fatal("failed to create grpc client")
	}
	defer conn.Close()

	summary := run(context.Background(), grpcsvc.NewOrderServiceClient(conn), opts)
	summary.print(os.Stdout)
	if opts.report != "" {
		if err := summary.writeJSON(opts.report); err != nil {
			log.WithError(err).Fatal("failed to write report")
		}
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func parseOptions(fs *flag.FlagSet, args []string) (options, error) {
	var opts options
	fs.StringVar(&opts.addr, "addr", "localhost:50051", "gRPC address of the order service")
	fs.StringVar(&opts.mode, "mode", modeCreate, "create | create-search | bulk")
	fs.IntVar(&opts.requests, "requests", 400, "number of scenarios; with -duration acts as an upper bound when > 0")
	fs.DurationVar(&opts.duration, "duration", 0, "run for a fixed time instead of a fixed number of scenarios")
	fs.IntVar(&opts.workers, "workers", 32, "concurrent scenarios")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Second, "per-scenario timeout")
	fs.IntVar(&opts.bulkSize, "bulk-size", 500, "orders per UpsertOrders stream in bulk mode")
	fs.StringVar(&opts.product, "product", "LOAD-PRODUCT", "product code of generated orders")
	fs.StringVar(&opts.locationTag, "location-tag", "load", "location code prefix of generated orders")
	fs.StringVar(&opts.report, "report", "", "write the JSON summary to this file")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	switch {
	case opts.mode != modeCreate && opts.mode != modeCreateSearch && opts.mode != modeBulk:
		return options{}, fmt.Errorf("unsupported mode %q", opts.mode)
	case opts.duration < 0:
		return options{}, errors.New("duration must be >= 0")
	case opts.duration == 0 && opts.requests <= 0:
		return options{}, errors.New("requests must be > 0 without duration")
	case opts.workers <= 0:
		return options{}, errors.New("workers must be > 0")
	case opts.timeout <= 0:
		return options{}, errors.New("timeout must be > 0")
	case opts.bulkSize <= 0:
		return options{}, errors.New("bulk-size must be > 0")
	case opts.product == "" || opts.locationTag == "":
		return options{}, errors.New("product and location-tag are required")
	}
	return opts, nil
}

// run выполняет сценарии пулом из opts.workers горутин и собирает сводку.
func run(ctx context.Context, client orderClient, opts options) summary {
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	rec := newRecorder()
	runID := time.Now().Format("150405.000")
	started := time.Now()

	var g errgroup.Group
	g.SetLimit(opts.workers)
	for i := 0; opts.requests <= 0 || i < opts.requests; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			scenarioCtx, cancel := context.WithTimeout(context.Background(), opts.timeout)
			defer cancel()
			begin := time.Now()
			err := runScenario(scenarioCtx, client, opts, runID, i, rec)
			rec.observe("scenario", time.Since(begin), err)
			return nil
		})
	}
	_ = g.Wait()

	return rec.summarize(opts.mode, time.Since(started))
}

func runScenario(ctx context.Context, client orderClient, opts options, runID string, index int, rec *recorder) error {
	if opts.mode == modeBulk {
		return rec.timed("UpsertOrders", func() error {
			return upsertOrders(ctx, client, opts, runID, index)
		})
	}

	order := generateOrder(opts, runID, index)
	var created *domain.Order
	err := rec.timed("CreateOrder", func() (err error) {
		created, err = client.CreateOrder(ctx, &grpcsvc.CreateOrderRequest{Order: order})
		return err
	})
	if err != nil {
		return err
	}
	if !created.HasID() {
		return status.Error(codes.Internal, "created order has no id")
	}
	if opts.mode != modeCreateSearch {
		return nil
	}

	pageSize := searchPageSize
	return rec.timed("SearchOrders", func() error {
		_, err := client.SearchOrders(ctx, &domain.SearchCriteria{
			OrderFilter: domain.OrderFilter{LocationCode: order.LocationCode},
			Aggregate:   true,
			PageSize:    &pageSize,
		})
		return err
	})
}

// upsertOrders отправляет bulkSize заказов одним клиентским потоком.
func upsertOrders(ctx context.Context, client orderClient, opts options, runID string, index int) error {
	stream, err := client.UpsertOrders(ctx)
	if err != nil {
		return err
	}
	for i := range opts.bulkSize {
		order := generateOrder(opts, runID, index*opts.bulkSize+i)
		if err := stream.Send(&order); err != nil {
			// настоящая причина приходит из CloseAndRecv
			break
		}
	}
	resp, err := stream.CloseAndRecv()
	if err != nil {
		return err
	}
	if resp.Received != opts.bulkSize {
		return status.Errorf(codes.DataLoss, "server received %d of %d orders", resp.Received, opts.bulkSize)
	}
	return nil
}

// generateOrder строит детерминированный по индексу заказ: локация и дата повторяются циклически.
func generateOrder(opts options, runID string, index int) domain.Order {
	return domain.Order{
		LocationCode: fmt.Sprintf("%s-%03d", opts.locationTag, index%locationsPerRun),
		ProductCode:  opts.product,
		OrderDate:    civil.Date{Year: 2024, Month: time.January, Day: 1}.AddDays(index % 365),
		Quantity:     index%100 + 1,
		SubmittedBy:  "loadtest-" + runID,
		SubmittedAt:  time.Now(),
	}
}

type recorder struct {
	mu        sync.Mutex
	latencies map[string][]time.Duration
	codes     map[string]map[string]int
}

func newRecorder() *recorder {
	return &recorder{
		latencies: make(map[string][]time.Duration),
		codes:     make(map[string]map[string]int),
	}
}

func (r *recorder) timed(method string, fn func() error) error {
	begin := time.Now()
	err := fn()
	r.observe(method, time.Since(begin), err)
	return err
}

func (r *recorder) observe(method string, d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.latencies[method] = append(r.latencies[method], d)
	if r.codes[method] == nil {
		r.codes[method] = make(map[string]int)
	}
	r.codes[method][status.Code(err).String()]++
}

// MethodSummary — задержки одного метода в миллисекундах.
type MethodSummary struct {
	Calls int            `json:"calls"`
	Codes map[string]int `json:"codes"`
	P50   float64        `json:"p50_ms"`
	P95   float64        `json:"p95_ms"`
	P99   float64        `json:"p99_ms"`
	Max   float64        `json:"max_ms"`
}

type summary struct {
	Mode     string                   `json:"mode"`
	Elapsed  time.Duration            `json:"elapsed_ns"`
	Total    int                      `json:"total"`
	Failed   int                      `json:"failed"`
	RPS      float64                  `json:"rps"`
	Scenario MethodSummary            `json:"scenario"`
	Methods  map[string]MethodSummary `json:"methods"`
}

func (r *recorder) summarize(mode string, elapsed time.Duration) summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := summary{Mode: mode, Elapsed: elapsed, Methods: make(map[string]MethodSummary)}
	for method, values := range r.latencies {
		m := summarizeMethod(values, r.codes[method])
		if method == "scenario" {
			s.Scenario = m
			s.Total = m.Calls
			s.Failed = m.Calls - m.Codes[codes.OK.String()]
			continue
		}
		s.Methods[method] = m
	}
	if elapsed > 0 {
		s.RPS = float64(s.Total) / elapsed.Seconds()
	}
	return s
}

func summarizeMethod(values []time.Duration, byCode map[string]int) MethodSummary {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return MethodSummary{
		Calls: len(sorted),
		Codes: copyCounts(byCode),
		P50:   millis(nearestRank(sorted, 50)),
		P95:   millis(nearestRank(sorted, 95)),
		P99:   millis(nearestRank(sorted, 99)),
		Max:   millis(nearestRank(sorted, 100)),
	}
}

// nearestRank возвращает p-й перцентиль отсортированной выборки методом ближайшего ранга.
func nearestRank(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	return sorted[max(rank, 1)-1]
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func copyCounts(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s summary) print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "mode=%s scenarios=%d failed=%d elapsed=%s rps=%.1f\n",
		s.Mode, s.Total, s.Failed, s.Elapsed.Round(time.Millisecond), s.RPS)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "METHOD\tCALLS\tP50\tP95\tP99\tMAX")
	names := make([]string, 0, len(s.Methods))
	for name := range s.Methods {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		m := s.Methods[name]
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\n", name, m.Calls, m.P50, m.P95, m.P99, m.Max)
	}
	_ = tw.Flush()
}

func (s summary) writeJSON(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(path), data, 0o600)
}
