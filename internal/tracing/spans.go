package tracing

// Span attribute keys.
const (
	AttrRoot       = "observer.root"
	AttrDirs       = "observer.dirs"
	AttrFactories  = "observer.factories"
	AttrCandidates = "observer.candidates"
	AttrCreated    = "observer.created"
	AttrUpdated    = "observer.updated"
	AttrDeleted    = "observer.deleted"
	AttrArchive    = "observer.archive"

	AttrErrorMessage = "error.message"
)

// Span names.
const (
	SpanRegister  = "observer.register"
	SpanReindex   = "observer.reindex"
	SpanReconcile = "observer.reconcile"
	SpanExtract   = "observer.extract"
)
