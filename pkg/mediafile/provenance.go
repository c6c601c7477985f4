package mediafile

const (
	SourceMetadata      = "metadata"
	SourceCatalogAPI    = "catalog_api"
	SourceLanguageModel = "language_model"
	SourceWebSearch     = "web_search"
	SourceHeuristic     = "heuristic"
	SourceUnresolved    = "unresolved"
)

// Lower value means higher priority.
const (
	SourceMetadataPriority = iota
	SourceCatalogAPIPriority
	SourceLanguageModelPriority
	SourceWebSearchPriority
	SourceHeuristicPriority
	SourceUnresolvedPriority
)

var SourcePriority = map[string]int{
	SourceMetadata:      SourceMetadataPriority,
	SourceCatalogAPI:    SourceCatalogAPIPriority,
	SourceLanguageModel: SourceLanguageModelPriority,
	SourceWebSearch:     SourceWebSearchPriority,
	SourceHeuristic:     SourceHeuristicPriority,
	SourceUnresolved:    SourceUnresolvedPriority,
}

// Canonical field names. These are the keys used in the persisted document
// and in adapter proposals.
const (
	FieldAuthor      = "author"
	FieldSeries      = "series"
	FieldSeriesIndex = "series_index"
	FieldTitle       = "title"
)

// CanonicalFields lists every field an entity carries, in display order.
var CanonicalFields = []string{FieldAuthor, FieldSeries, FieldSeriesIndex, FieldTitle}
