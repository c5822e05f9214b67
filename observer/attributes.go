package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for lore engine spans and metrics.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")
	AttrLLMMethod   = attribute.Key("llm.method")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")
	AttrCostUSD      = attribute.Key("llm.cost_usd")

	AttrCacheHandleSet = attribute.Key("llm.cache_handle_set")

	AttrEmbedTextCount  = attribute.Key("llm.embed.text_count")
	AttrEmbedDimensions = attribute.Key("llm.embed.dimensions")

	AttrCampaignID   = attribute.Key("campaign.id")
	AttrCacheResult  = attribute.Key("context_cache.result")
	AttrCacheSources = attribute.Key("context_cache.source_count")
)
