package httpinvoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"github.com/spf13/cast"
	"github.com/yosida95/uritemplate/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/i2y/lnbits-mcp/internal/domain"
	"github.com/i2y/lnbits-mcp/internal/usecase"
)

const (
	// InvoiceToolName is the operation whose results get payment links attached.
	InvoiceToolName = "payments_create_payments"

	tracerName = "github.com/i2y/lnbits-mcp/internal/adapter/outbound/httpinvoker"
)

var (
	placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

	// userAuthParams mark endpoints that expect an end-user Bearer token.
	userAuthParams = []string{"usr", "cookie_access_token"}

	// paymentRequestFields are checked in order.
	paymentRequestFields = []string{"payment_request", "bolt11"}

	qrCodeTemplate = uritemplate.MustNew("{+base}/api/v1/qrcode/{data}")
)

// Dispatcher executes discovered operations through an APIClient.
type Dispatcher struct {
	logger *slog.Logger
}

var _ usecase.OperationDispatcher = (*Dispatcher)(nil)

// New creates a new Dispatcher.
func New(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{logger: logger.With("component", "http_dispatcher")}
}

// Dispatch builds the request for op from args, executes it and returns the result as indented JSON.
// Transport errors are returned unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, client usecase.APIClient, op domain.Operation, args map[string]any, accessToken string) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Dispatch")
	defer span.End()

	path := SubstitutePath(op.Path, args)
	query, body := SeparateParams(op, args)

	var headers map[string]string
	if accessToken != "" && needsUserAuth(op) {
		headers = map[string]string{"Authorization": "Bearer " + accessToken}
	}

	span.SetAttributes(
		attribute.String("mcp.tool", op.ToolName),
		attribute.String("http.method", op.Method),
		attribute.String("url.path", path),
		attribute.Bool("lnbits.user_auth", headers != nil),
	)
	d.logger.Info("Dispatching",
		slog.String("tool", op.ToolName),
		slog.String("method", op.Method),
		slog.String("path", path))

	if len(query) == 0 {
		query = nil
	}
	if len(body) == 0 {
		body = nil
	}

	result, err := client.Request(ctx, op.Method, path, query, body, headers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if op.ToolName == InvoiceToolName && isFalsy(args["out"]) {
		result = enrichInvoice(client.BaseURL(), result)
	}

	text, err := Serialize(result)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return text, nil
}

// SubstitutePath replaces {name} placeholders with the matching argument.
// Placeholders without an argument are left as they are.
func SubstitutePath(template string, args map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		v, ok := args[key]
		if !ok {
			return match
		}
		return stringify(v)
	})
}

// SeparateParams splits args into query and body values. Arguments named after a
// declared path parameter are dropped, declared query parameters go to the query,
// and everything else goes to the body.
func SeparateParams(op domain.Operation, args map[string]any) (query, body map[string]any) {
	pathNames := op.ParameterNames(domain.LocationPath)
	queryNames := op.ParameterNames(domain.LocationQuery)

	query = map[string]any{}
	body = map[string]any{}
	for k, v := range args {
		if _, ok := pathNames[k]; ok {
			continue
		}
		if _, ok := queryNames[k]; ok {
			query[k] = v
			continue
		}
		body[k] = v
	}
	return query, body
}

func needsUserAuth(op domain.Operation) bool {
	for _, name := range userAuthParams {
		if op.HasParameter(name) {
			return true
		}
	}
	return false
}

// enrichInvoice adds qr_code and lightning_uri when result carries a payment request.
func enrichInvoice(baseURL string, result any) any {
	m, ok := result.(map[string]any)
	if !ok {
		return result
	}
	var pr string
	for _, field := range paymentRequestFields {
		if s, ok := m[field].(string); ok && s != "" {
			pr = s
			break
		}
	}
	if pr == "" {
		return result
	}

	values := uritemplate.Values{}
	values.Set("base", uritemplate.String(strings.TrimRight(baseURL, "/")))
	values.Set("data", uritemplate.String(pr))
	qr, err := qrCodeTemplate.Expand(values)
	if err != nil {
		return result
	}

	enriched := make(map[string]any, len(m)+2)
	for k, v := range m {
		enriched[k] = v
	}
	enriched["qr_code"] = qr
	enriched["lightning_uri"] = "lightning:" + pr
	return enriched
}

// Serialize renders v as two-space indented JSON. Values JSON cannot encode are stringified.
func Serialize(v any) (string, error) {
	out, err := encode(v)
	if err == nil {
		return out, nil
	}
	out, err = encode(jsonSafe(v))
	if err != nil {
		return "", fmt.Errorf("failed to serialize result: %w", err)
	}
	return out, nil
}

func encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func jsonSafe(v any) any {
	switch t := v.(type) {
	case nil, bool, string, int, int64, int32, json.Number:
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = jsonSafe(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = jsonSafe(e)
		}
		return out
	}
	if _, err := json.Marshal(v); err == nil {
		return v
	}
	return fmt.Sprint(v)
}

func stringify(v any) string {
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

// isFalsy reports whether v is absent, false, zero, or empty.
func isFalsy(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case bool:
		return !t
	case string:
		return t == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return cast.ToFloat64(v) == 0
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}
