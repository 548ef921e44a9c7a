package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	apiv1 "github.com/vladislavdragonenkov/ordersvc/api/v1"
)

const (
	methodScenario   = "scenario"
	methodPlaceOrder = "PlaceOrder"
	methodGetOrder   = "GetOrder"
)

type loadMode string

const (
	// modePlace: только PlaceOrder.
	modePlace loadMode = "place"
	// modePlaceGet: PlaceOrder и чтение заказа по номеру.
	modePlaceGet loadMode = "place-get"
	// modeMixed: часть сценариев заведомо превышает остаток и должна получить FailedPrecondition.
	modeMixed loadMode = "mixed"
)

type config struct {
	addr         string
	total        int
	totalSet     bool
	duration     time.Duration
	concurrency  int
	connections  int
	timeout      time.Duration
	mode         loadMode
	rejectRate   int
	sku          string
	qty          int32
	rejectQty    int32
	priceMinor   int64
	allowOutages bool
	outputPath   string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

// placementReport раскладывает ответы PlaceOrder по исходам размещения.
type placementReport struct {
	Placed      int64 `json:"placed"`
	Rejected    int64 `json:"rejected"`
	Unavailable int64 `json:"unavailable"`
	Other       int64 `json:"other"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Placement         placementReport         `json:"placement"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

func (s *methodStats) report() methodReport {
	codesCopy := make(map[string]int64, len(s.codes))
	for code, count := range s.codes {
		codesCopy[code] = count
	}
	return methodReport{
		Calls:     s.calls,
		Success:   s.success,
		Failed:    s.failed,
		ErrorRate: ratio(s.failed, s.calls),
		Codes:     codesCopy,
		LatencyMs: buildLatencySummary(s.latencies),
	}
}

// collector накапливает статистику вызовов из всех воркеров.
type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*methodStats)}
}

// record учитывает вызов; ok решает вызывающий, так как отказ по остаткам тоже корректный ответ.
func (c *collector) record(method string, latency time.Duration, code codes.Code, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, exists := c.methods[method]
	if !exists {
		stats = &methodStats{codes: make(map[string]int64)}
		c.methods[method] = stats
	}

	stats.calls++
	if ok {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) snapshot(name string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[name]
	if !ok {
		return methodReport{}, false
	}
	return stats.report(), true
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	if scenario := c.methods[methodScenario]; scenario != nil {
		result.TotalScenarios = scenario.calls
		result.SuccessScenarios = scenario.success
		result.FailedScenarios = scenario.failed
		result.ErrorRate = ratio(scenario.failed, scenario.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenario.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	if place := c.methods[methodPlaceOrder]; place != nil {
		for code, count := range place.codes {
			switch code {
			case codes.OK.String():
				result.Placement.Placed += count
			case codes.FailedPrecondition.String():
				result.Placement.Rejected += count
			case codes.Unavailable.String():
				result.Placement.Unavailable += count
			default:
				result.Placement.Other += count
			}
		}
	}

	for name, stats := range c.methods {
		result.Methods[name] = stats.report()
	}
	return result
}

func parseConfig() (config, error) {
	var (
		cfg           config
		modeValue     string
		timeoutValue  string
		durationValue string
		qty           int
		rejectQty     int
	)

	flag.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC address of order-service")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios in count mode; in duration mode only a cap when set explicitly")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 1m, 10m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-RPC timeout")
	flag.StringVar(&modeValue, "mode", string(modePlace), "load mode: place | place-get | mixed")
	flag.IntVar(&cfg.rejectRate, "reject-rate", 20, "percent of mixed-mode scenarios that order more than is in stock (0..100)")
	flag.StringVar(&cfg.sku, "sku", "SKU-LOAD", "SKU of the order line")
	flag.IntVar(&qty, "qty", 1, "quantity per order line")
	flag.IntVar(&rejectQty, "reject-qty", 1_000_000, "quantity used by scenarios that must be rejected")
	flag.Int64Var(&cfg.priceMinor, "price-minor", 1000, "unit price in minor units")
	flag.BoolVar(&cfg.allowOutages, "allow-unavailable", false, "do not count Unavailable (open breaker) as a failed scenario")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	switch {
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.rejectRate < 0 || cfg.rejectRate > 100:
		return cfg, errors.New("reject-rate must be between 0 and 100")
	case strings.TrimSpace(cfg.sku) == "":
		return cfg, errors.New("sku is required")
	case qty < 0 || qty > math.MaxInt32:
		return cfg, errors.New("qty must be between 0 and 2147483647")
	case rejectQty <= qty || rejectQty > math.MaxInt32:
		return cfg, errors.New("reject-qty must be greater than qty")
	case cfg.priceMinor < 0:
		return cfg, errors.New("price-minor must be >= 0")
	}
	cfg.qty = int32(qty)
	cfg.rejectQty = int32(rejectQty)

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modePlace:
		return modePlace, nil
	case modePlaceGet:
		return modePlaceGet, nil
	case modeMixed:
		return modeMixed, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]apiv1.OrderServiceClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, apiv1.NewOrderServiceClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	startedAt := time.Now()
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func(cli apiv1.OrderServiceClient) {
			defer wg.Done()
			for id := range jobs {
				_ = runScenario(cli, cfg, id, col)
			}
		}(clients[workerID%len(clients)])
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// runScenario размещает один заказ и, в режиме place-get, читает его обратно по номеру.
func runScenario(client apiv1.OrderServiceClient, cfg config, index int, col *collector) error {
	scenarioStart := time.Now()
	scenarioCode := codes.OK
	defer func() {
		col.record(methodScenario, time.Since(scenarioStart), scenarioCode, acceptable(scenarioCode, cfg))
	}()

	wantReject := shouldReject(index, cfg)
	qty := cfg.qty
	if wantReject {
		qty = cfg.rejectQty
	}

	resp, err := callPlaceOrder(client, cfg, &apiv1.PlaceOrderRequest{
		Lines: []apiv1.OrderLine{{SKU: cfg.sku, PriceMinor: cfg.priceMinor, Quantity: qty}},
	}, col)
	if err != nil {
		scenarioCode = grpcCode(err)
		if wantReject && scenarioCode != codes.FailedPrecondition && scenarioCode != codes.Unavailable {
			scenarioCode = codes.Internal
			return fmt.Errorf("expected rejection for qty %d, got %w", qty, err)
		}
		return err
	}
	if wantReject {
		scenarioCode = codes.Internal
		return fmt.Errorf("order for qty %d must be rejected", qty)
	}

	if resp == nil || resp.Order == nil || resp.Order.OrderNumber == "" {
		scenarioCode = codes.Internal
		return errors.New("place response returned empty order number")
	}

	if cfg.mode != modePlaceGet {
		return nil
	}

	if _, err := callGetOrder(client, cfg, resp.Order.OrderNumber, col); err != nil {
		scenarioCode = grpcCode(err)
		return err
	}
	return nil
}

func callPlaceOrder(client apiv1.OrderServiceClient, cfg config, req *apiv1.PlaceOrderRequest, col *collector) (*apiv1.PlaceOrderResponse, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	resp, err := client.PlaceOrder(ctx, req)
	code := grpcCode(err)
	col.record(methodPlaceOrder, time.Since(start), code, acceptable(code, cfg))
	return resp, err
}

func callGetOrder(client apiv1.OrderServiceClient, cfg config, number string, col *collector) (*apiv1.GetOrderResponse, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	resp, err := client.GetOrder(ctx, &apiv1.GetOrderRequest{OrderNumber: number})
	code := grpcCode(err)
	col.record(methodGetOrder, time.Since(start), code, code == codes.OK)
	return resp, err
}

// acceptable: отказ по остаткам является штатным ответом, Unavailable только с -allow-unavailable.
func acceptable(code codes.Code, cfg config) bool {
	switch code {
	case codes.OK, codes.FailedPrecondition:
		return true
	case codes.Unavailable:
		return cfg.allowOutages
	default:
		return false
	}
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

func shouldReject(index int, cfg config) bool {
	if cfg.mode != modeMixed || cfg.rejectRate <= 0 {
		return false
	}
	if cfg.rejectRate >= 100 {
		return true
	}
	return index%100 < cfg.rejectRate
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Printf("placement: placed=%d rejected=%d unavailable=%d other=%d\n",
		result.Placement.Placed,
		result.Placement.Rejected,
		result.Placement.Unavailable,
		result.Placement.Other,
	)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == methodScenario {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		fmt.Printf("%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, stats.Calls, stats.Success, stats.Failed, stats.ErrorRate, stats.LatencyMs.P95)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile интерполирует между соседними рангами отсортированной выборки.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
