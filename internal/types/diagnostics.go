package types

// Diagnostics accumulates non-fatal warnings produced during extraction and
// ingestion. spec.md §4.1 requires that a per-element tessellation failure
// or a dangling relationship reference be surfaced rather than silently
// dropped or treated as fatal.
type Diagnostics struct {
	Notes []DiagnosticNote
}

// DiagnosticNote is one warning, tagged by kind so callers (and tests) can
// filter without parsing message text.
type DiagnosticNote struct {
	Kind    string // "tessellation_failed", "dangling_edge", "graph_mirror_failed"
	Subject string // a global_id or entity reference the note concerns
	Message string
}

// Add appends a note. Safe to call on a nil *Diagnostics (no-op).
func (d *Diagnostics) Add(kind, subject, message string) {
	if d == nil {
		return
	}
	d.Notes = append(d.Notes, DiagnosticNote{Kind: kind, Subject: subject, Message: message})
}

// ChangeSet is the Diff Engine's output: four disjoint sets of GlobalID
// (spec.md §4.2).
type ChangeSet struct {
	Added     []GlobalID
	Modified  []GlobalID
	Deleted   []GlobalID
	Unchanged []GlobalID
}

// Counts summarizes a ChangeSet's cardinalities plus the number of graph
// edges created, exactly the shape of IngestionResult.Counts (spec.md §6,
// "Upload surface").
type Counts struct {
	Added        int `json:"added"`
	Modified     int `json:"modified"`
	Deleted      int `json:"deleted"`
	Unchanged    int `json:"unchanged"`
	EdgesCreated int `json:"edgesCreated"`
}

// IngestionResult is RevisionWriter.Ingest's return value (spec.md §4.3 and
// §6).
type IngestionResult struct {
	RevisionID  int64       `json:"revisionId"`
	Counts      Counts      `json:"counts"`
	Diagnostics Diagnostics `json:"-"`
}
