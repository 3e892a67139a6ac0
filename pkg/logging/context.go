package logging

import (
	"context"
)

const (
	TraceIDKey     = "trace_id"
	EventIDKey     = "event_id"
	TenantIDKey    = "tenant_id"
	TemplateIDKey  = "template_id"
	ServiceNameKey = "service_name"
)

type contextKey string

var orderedKeys = []string{TraceIDKey, EventIDKey, TenantIDKey, TemplateIDKey, ServiceNameKey}

func with(ctx context.Context, key, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey(key), value)
}

func get(ctx context.Context, key string) string {
	if v, ok := ctx.Value(contextKey(key)).(string); ok {
		return v
	}
	return ""
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return with(ctx, TraceIDKey, traceID)
}

func WithEventID(ctx context.Context, eventID string) context.Context {
	return with(ctx, EventIDKey, eventID)
}

func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return with(ctx, TenantIDKey, tenantID)
}

func WithTemplateID(ctx context.Context, templateID string) context.Context {
	return with(ctx, TemplateIDKey, templateID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return with(ctx, ServiceNameKey, serviceName)
}

func GetTraceID(ctx context.Context) string {
	return get(ctx, TraceIDKey)
}

func GetEventID(ctx context.Context) string {
	return get(ctx, EventIDKey)
}

func GetTenantID(ctx context.Context) string {
	return get(ctx, TenantIDKey)
}

func GetTemplateID(ctx context.Context) string {
	return get(ctx, TemplateIDKey)
}

func GetServiceName(ctx context.Context) string {
	return get(ctx, ServiceNameKey)
}

// GetLogFields returns the populated context values as alternating key/value pairs.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 2*len(orderedKeys))
	for _, key := range orderedKeys {
		if v := get(ctx, key); v != "" {
			fields = append(fields, key, v)
		}
	}
	return fields
}
