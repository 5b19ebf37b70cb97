// Package metrics implements the measure evaluation engine: aggregate,
// time-intelligence, and customer RFM measures computed over immutable
// dataset snapshots under explicit filter contexts.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/calendar"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
)

// EngineVersion tags reports with the evaluation code revision.
const EngineVersion = "0.4.0"

var (
	// ErrNoSnapshot is returned when a dataset has no loaded snapshot.
	ErrNoSnapshot = errors.New("no snapshot loaded for dataset")

	// ErrUnknownMeasure is returned for measure names outside the catalog.
	ErrUnknownMeasure = errors.New("unknown measure")

	// ErrUnknownDimension is returned for invalid GroupBy keys.
	ErrUnknownDimension = errors.New("unknown dimension")
)

// Engine evaluates measure queries against dataset snapshots. Snapshots
// are swapped atomically under the lock; evaluation itself runs lock-free
// against the immutable snapshot it fetched.
type Engine struct {
	mu         sync.RWMutex
	env        *cel.Env
	snapshots  map[string]*Dataset
	maxWorkers int
	tracer     trace.Tracer
}

// NewEngine creates a measure evaluation engine. maxWorkers bounds
// parallel group evaluation.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}

	// CEL environment with the fact-row variables available to
	// context expressions.
	env, err := cel.NewEnv(
		cel.Variable("sales", cel.DoubleType),
		cel.Variable("profit", cel.DoubleType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("discount", cel.DoubleType),
		cel.Variable("region", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("sub_category", cel.StringType),
		cel.Variable("segment", cel.StringType),
		cel.Variable("customer_id", cel.StringType),
		cel.Variable("order_id", cel.StringType),
		cel.Variable("product_name", cel.StringType),
		cel.Variable("order_date", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:        env,
		snapshots:  make(map[string]*Dataset),
		maxWorkers: maxWorkers,
		tracer:     otel.Tracer("superstore-metrics"),
	}, nil
}

// SetSnapshot swaps in a new snapshot for its dataset.
func (e *Engine) SetSnapshot(ds *Dataset) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshots[ds.ID] = ds
}

// snapshot returns the dataset's current snapshot.
func (e *Engine) snapshot(datasetID string) (*Dataset, error) {
	if datasetID == "" {
		datasetID = domain.DefaultDataset
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	ds, ok := e.snapshots[datasetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, datasetID)
	}
	return ds, nil
}

// SnapshotInfo summarizes the dataset's current snapshot.
func (e *Engine) SnapshotInfo(datasetID string) (SnapshotInfo, error) {
	ds, err := e.snapshot(datasetID)
	if err != nil {
		return SnapshotInfo{}, err
	}
	return ds.Info(), nil
}

// CalendarDays returns the snapshot's date dimension.
func (e *Engine) CalendarDays(datasetID string) ([]domain.CalendarDay, error) {
	ds, err := e.snapshot(datasetID)
	if err != nil {
		return nil, err
	}
	return ds.Calendar, nil
}

// ValidateExpression compiles a context expression without running it.
func (e *Engine) ValidateExpression(expr string) error {
	_, err := e.compileExpression(expr)
	return err
}

func (e *Engine) compileExpression(expr string) (cel.Program, error) {
	if expr == "" {
		return nil, nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}
	prog, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create expression program: %w", err)
	}
	return prog, nil
}

func validDimension(dim string) bool {
	switch dim {
	case domain.DimRegion, domain.DimCategory, domain.DimSubCategory,
		domain.DimSegment, domain.DimProductName, domain.DimCustomerID:
		return true
	}
	return false
}

// Evaluate answers a measure query. Scalar queries return one value per
// measure; Grain queries group by calendar period in chronological order;
// GroupBy queries group by a fact dimension ranked by summed sales
// descending (ties alphabetical). Group evaluation runs in parallel,
// which is safe because every measure is a pure function of the
// immutable snapshot.
func (e *Engine) Evaluate(ctx context.Context, q domain.Query) (*domain.Report, error) {
	start := time.Now()

	ds, err := e.snapshot(q.DatasetID)
	if err != nil {
		return nil, err
	}

	if len(q.Measures) == 0 {
		return nil, fmt.Errorf("query must name at least one measure")
	}
	for _, m := range q.Measures {
		if !KnownMeasure(m) {
			return nil, fmt.Errorf("%w: %q (catalog: %s)", ErrUnknownMeasure, m, measureNames())
		}
	}
	if q.GroupBy != "" && q.Grain != "" {
		return nil, fmt.Errorf("groupBy and grain are mutually exclusive")
	}
	if q.GroupBy != "" && !validDimension(q.GroupBy) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, q.GroupBy)
	}
	if q.Grain != "" && !domain.ValidGrain(q.Grain) {
		return nil, fmt.Errorf("unknown grain %q", q.Grain)
	}
	if err := q.Context.Validate(); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "metrics.evaluate",
		trace.WithAttributes(
			attribute.String("dataset.id", ds.ID),
			attribute.Int64("dataset.version", ds.Version),
			attribute.Int("query.measures", len(q.Measures)),
			attribute.String("query.grain", string(q.Grain)),
			attribute.String("query.group_by", q.GroupBy),
		),
	)
	defer span.End()

	prog, err := e.compileExpression(q.Context.Expression)
	if err != nil {
		return nil, err
	}

	noDate, err := applyContext(ds, q.Context, prog)
	if err != nil {
		return nil, err
	}
	base := noDate.restrictDates(q.Context.DateFrom, q.Context.DateTo)

	report := &domain.Report{
		DatasetID: ds.ID,
		Metadata: domain.ReportMetadata{
			SnapshotVersion: ds.Version,
			RowsScanned:     len(ds.Rows),
			RowsMatched:     base.Len(),
			EngineVersion:   EngineVersion,
		},
	}
	if tid := span.SpanContext().TraceID(); tid.IsValid() {
		report.Metadata.TraceID = tid.String()
	}

	switch {
	case q.Grain != "":
		report.Groups, err = e.evalGrainGroups(ctx, q, base, noDate)
	case q.GroupBy != "":
		report.Groups, err = e.evalDimensionGroups(ctx, q, ds, base, noDate)
	default:
		from, to := periodOf(q.Context, ds)
		report.Scalars = evalMeasures(q.Measures, base, noDate, q.Context, from, to)
	}
	if err != nil {
		return nil, err
	}

	report.Metadata.GroupCount = len(report.Groups)
	report.Metadata.EvalMs = time.Since(start).Milliseconds()
	return report, nil
}

// evalMeasures computes each requested measure over one view. noDate is
// the same selection without date bounds, consumed by the re-windowing
// time-intelligence measures; [from, to] is the evaluation period.
func evalMeasures(measures []string, v, noDate *View, fc domain.FilterContext, from, to time.Time) map[string]domain.Value {
	out := make(map[string]domain.Value, len(measures))
	for _, m := range measures {
		switch m {
		case domain.MeasureTotalSales:
			out[m] = domain.Number(sumSales(v))
		case domain.MeasureTotalProfit:
			out[m] = domain.Number(sumProfit(v))
		case domain.MeasureTotalQuantity:
			out[m] = domain.Number(float64(sumQuantity(v)))
		case domain.MeasureTotalOrders:
			out[m] = domain.Number(float64(distinctOrders(v)))
		case domain.MeasureTotalCustomers:
			out[m] = domain.Number(float64(distinctCustomers(v)))
		case domain.MeasureAvgSalesPerCustomer:
			out[m] = domain.SafeDiv(sumSales(v), float64(distinctCustomers(v)))
		case domain.MeasureAvgProfitPerCustomer:
			out[m] = domain.SafeDiv(sumProfit(v), float64(distinctCustomers(v)))
		case domain.MeasureProfitMargin:
			out[m] = domain.SafeDiv(sumProfit(v), sumSales(v))
		case domain.MeasureAvgDiscountPct:
			out[m] = avgDiscountPct(v)
		case domain.MeasureAvgShipDays:
			out[m] = avgShipDays(v)
		case domain.MeasureTopProductSales:
			out[m] = topProductSales(v)
		case domain.MeasureCumulativeSales:
			out[m] = domain.Number(cumulativeSales(noDate, fc, to))
		case domain.MeasureSalesLY:
			out[m] = salesLY(noDate, from, to)
		case domain.MeasureYoYSalesGrowth:
			out[m] = yoySalesGrowth(sumSales(v), noDate, from, to)
		case domain.MeasureReturningCustomersPct:
			out[m] = returningCustomersPct(noDate, from, to)
		}
	}
	return out
}

// evalGrainGroups groups the matched rows by calendar period and
// evaluates the measures per period, in parallel.
func (e *Engine) evalGrainGroups(ctx context.Context, q domain.Query, base, noDate *View) ([]domain.GroupResult, error) {
	buckets := make(map[string][]int)
	for _, j := range base.idx {
		key := calendar.PeriodKey(base.ds.Rows[j].OrderDate, q.Grain)
		buckets[key] = append(buckets[key], j)
	}

	// Period keys sort chronologically as strings.
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if q.Limit > 0 && len(keys) > q.Limit {
		keys = keys[:q.Limit]
	}

	results := make([]domain.GroupResult, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxWorkers)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			gv := &View{ds: base.ds, idx: buckets[key]}
			from, to := calendar.PeriodBounds(gv.row(0).OrderDate, q.Grain)
			results[i] = domain.GroupResult{
				Key:      key,
				Rows:     gv.Len(),
				Measures: evalMeasures(q.Measures, gv, noDate, q.Context, from, to),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// evalDimensionGroups groups the matched rows by a fact dimension and
// evaluates the measures per group, in parallel. Groups are ranked by
// summed sales descending so Limit returns the top groups.
func (e *Engine) evalDimensionGroups(ctx context.Context, q domain.Query, ds *Dataset, base, noDate *View) ([]domain.GroupResult, error) {
	buckets := make(map[string][]int)
	sales := make(map[string]float64)
	for _, j := range base.idx {
		r := ds.Rows[j]
		key := r.Dimension(q.GroupBy)
		buckets[key] = append(buckets[key], j)
		sales[key] += r.Sales
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if sales[keys[i]] != sales[keys[j]] {
			return sales[keys[i]] > sales[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if q.Limit > 0 && len(keys) > q.Limit {
		keys = keys[:q.Limit]
	}

	from, to := periodOf(q.Context, ds)

	results := make([]domain.GroupResult, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxWorkers)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			gv := &View{ds: ds, idx: buckets[key]}
			gNoDate := noDate.restrictDimension(q.GroupBy, key)
			results[i] = domain.GroupResult{
				Key:      key,
				Rows:     gv.Len(),
				Measures: evalMeasures(q.Measures, gv, gNoDate, q.Context, from, to),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
