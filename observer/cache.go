package observer

import (
	"context"

	loreforge "github.com/loreforge/loreforge"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedCache wraps a loreforge.ContextCache to emit lookup spans and a
// hit/miss counter. Each chat turn produces one lookup.
type ObservedCache struct {
	inner loreforge.ContextCache
	inst  *Instruments
}

// WrapCache returns an instrumented context cache.
func WrapCache(inner loreforge.ContextCache, inst *Instruments) *ObservedCache {
	return &ObservedCache{inner: inner, inst: inst}
}

var _ loreforge.ContextCache = (*ObservedCache)(nil)

func (o *ObservedCache) GetOrCreate(ctx context.Context, campaignID string, sourceHandles []string, systemInstruction string) (string, bool) {
	ctx, span := o.inst.Tracer.Start(ctx, "context_cache.lookup", trace.WithAttributes(
		AttrCampaignID.String(campaignID),
		AttrCacheSources.Int(len(sourceHandles)),
	))
	defer span.End()

	handle, ok := o.inner.GetOrCreate(ctx, campaignID, sourceHandles, systemInstruction)

	result := "miss"
	if ok {
		result = "hit"
	}
	span.SetAttributes(AttrCacheResult.String(result))
	o.inst.CacheLookups.Add(ctx, 1, metric.WithAttributes(
		AttrCacheResult.String(result),
	))

	return handle, ok
}

func (o *ObservedCache) Close() { o.inner.Close() }
