// Command procurectl drives the procurement core against the configured
// store: it can run a demo workflow, list documents, print the JSON Schema of
// the persisted layout and show the stored keys.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"text/tabwriter"

	"github.com/invopop/jsonschema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"procurecore/internal/config"
	"procurecore/internal/core"
	"procurecore/internal/infra/catalog"
	"procurecore/pkg/domain"
)

var exitFunc = os.Exit

const usage = `usage: procurectl [-env file] <command>

commands:
  demo                        run a requisition to order to receipt flow
  list requisitions|orders    list stored documents
  schema                      print the JSON Schema of the persisted layout
  keys                        print the store keys and driver
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("procurectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = fmt.Fprint(stderr, usage) }
	envFile := fs.String("env", ".env", "optional .env file with PROCURECORE_* settings")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}

	if rest[0] == "schema" {
		if err := writeSchema(stdout); err != nil {
			_, _ = fmt.Fprintf(stderr, "schema: %v\n", err)
			return 1
		}
		return 0
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	logger := newLogger(cfg, stderr)

	if err := run(ctx, cfg, logger, rest, stdout); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}
		logger.Error("command failed", "command", rest[0], "error", err)
		return 1
	}
	return 0
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	levels := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	opts := &slog.HandlerOptions{Level: levels[cfg.LogLevel]}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, stdout io.Writer) error {
	s, closeStore, err := core.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	metrics := core.NewPrometheusMetricsRecorder(cfg.MetricsNamespace)
	registry := prometheus.NewRegistry()
	if err := registry.Register(metrics); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	svc := core.NewService(s,
		core.WithLogger(logger),
		core.WithAuditRecorder(core.NewLogAuditRecorder(logger)),
		core.WithMetricsRecorder(metrics),
		core.WithMaterialLookup(catalog.Demo()),
	)

	switch args[0] {
	case "demo":
		if err := demo(ctx, svc, stdout); err != nil {
			return err
		}
		return reportMetrics(registry, stdout)
	case "list":
		if len(args) != 2 {
			return errUsage
		}
		return list(ctx, svc, args[1], stdout)
	case "keys":
		if _, err := fmt.Fprintf(stdout, "driver: %s\n", s.Driver()); err != nil {
			return err
		}
		for _, key := range s.Keys() {
			if _, err := fmt.Fprintln(stdout, key); err != nil {
				return err
			}
		}
		return nil
	default:
		return errUsage
	}
}

func demo(ctx context.Context, svc *core.Service, w io.Writer) error {
	mat := func(s string) *string { return &s }
	dept := "maintenance"
	req, err := svc.CreateRequisition(ctx, domain.Requisition{
		Header: domain.Header{Description: "Workshop restock", Requester: "demo", Department: &dept},
		Items: []domain.RequisitionItem{
			{Item: domain.Item{MaterialNumber: mat("MAT-1000"), Description: "Steel bolt M8", Quantity: decimal.NewFromInt(200), Unit: "EA", Price: decimal.RequireFromString("0.15")}},
			{Item: domain.Item{MaterialNumber: mat("MAT-2000"), Description: "Hydraulic oil 5L", Quantity: decimal.NewFromInt(4), Unit: "L", Price: decimal.RequireFromString("32.50")}},
		},
	})
	if err != nil {
		return err
	}
	if _, err := svc.SubmitRequisition(ctx, req.DocumentNumber); err != nil {
		return err
	}
	if req, err = svc.ApproveRequisition(ctx, req.DocumentNumber); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "requisition %s %s value %s\n", req.DocumentNumber, req.Status, req.TotalValue().StringFixed(2))

	terms := "NET30"
	po, err := svc.CreateOrderFromRequisition(ctx, req.DocumentNumber, "ACME Industrial", &terms)
	if err != nil {
		return err
	}
	if _, err := svc.SubmitOrder(ctx, po.DocumentNumber); err != nil {
		return err
	}
	if _, err := svc.ApproveOrder(ctx, po.DocumentNumber); err != nil {
		return err
	}
	first := po.Items[0].ItemNumber
	if po, err = svc.ReceiveOrder(ctx, po.DocumentNumber, core.Quantities{first: decimal.NewFromInt(150)}); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "order %s %s after first receipt\n", po.DocumentNumber, po.Status)
	if po, err = svc.CompleteOrder(ctx, po.DocumentNumber); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "order %s %s value %s\n", po.DocumentNumber, po.Status, po.TotalValue().StringFixed(2))
	return err
}

func reportMetrics(registry *prometheus.Registry, w io.Writer) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := fmt.Fprintf(w, "metric %s series=%d\n", mf.GetName(), len(mf.GetMetric())); err != nil {
			return err
		}
	}
	return nil
}

func list(ctx context.Context, svc *core.Service, kind string, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	switch kind {
	case "requisitions":
		reqs, err := svc.ListRequisitions(ctx, core.RequisitionFilter{})
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(tw, "NUMBER\tSTATUS\tREQUESTER\tITEMS\tVALUE")
		for _, r := range reqs {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.DocumentNumber, r.Status, r.Requester, len(r.Items), r.TotalValue().StringFixed(2))
		}
	case "orders":
		orders, err := svc.ListOrders(ctx, core.OrderFilter{})
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(tw, "NUMBER\tSTATUS\tVENDOR\tITEMS\tVALUE")
		for _, o := range orders {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", o.DocumentNumber, o.Status, o.Vendor, len(o.Items), o.TotalValue().StringFixed(2))
		}
	default:
		return errUsage
	}
	return tw.Flush()
}

// persistedLayout mirrors what a sink stores: one payload per collection key,
// each an object keyed by document number.
type persistedLayout struct {
	Requisitions map[string]persistedRequisition `json:"requisitions"`
	Orders       map[string]persistedOrder       `json:"orders"`
}

// The persisted documents carry the derived total next to their fields.
type persistedRequisition struct {
	domain.Requisition
	TotalValue decimal.Decimal `json:"total_value"`
}

type persistedOrder struct {
	domain.Order
	TotalValue decimal.Decimal `json:"total_value"`
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func writeSchema(w io.Writer) error {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == decimalType {
				return &jsonschema.Schema{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`}
			}
			return nil
		},
	}
	schema := reflector.Reflect(&persistedLayout{})
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(schema)
}
