package ingest

// Record is one observation from a scan export. Records are transient:
// they are handed to a Sink and not retained by the ingestor.
type Record struct {
	Domain        string // owning (scanned) domain, sanitized
	DataType      string // upstream data type label
	Value         string
	Module        string // upstream module, empty for minimal exports
	Source        string
	FalsePositive bool
	File          string
}

// Sink receives the records of one file. Run obtains one Sink per file and
// delivers that file's records sequentially; different files may be
// delivered concurrently to different sinks.
type Sink interface {
	Add(rec Record)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(rec Record)

// Add calls f(rec).
func (f SinkFunc) Add(rec Record) { f(rec) }

// SinkFactory returns the Sink for the file at path.
type SinkFactory func(path string) Sink

// FileReport describes what happened to one export file.
type FileReport struct {
	Path           string
	Layout         Layout
	Domain         string // domain recovered from the file name, if any
	Rows           int
	Records        int
	Malformed      int
	FalsePositives int
	Blacklisted    int
	InvalidDomains int
	Skipped        bool
	Reason         string
}

// Stats aggregates FileReports.
type Stats struct {
	FilesSeen      int
	FilesParsed    int
	FilesSkipped   int
	RowsRead       int
	RowsMalformed  int
	FalsePositives int
	Blacklisted    int
	InvalidDomains int
	Records        int
}

func (s *Stats) add(r FileReport) {
	s.FilesSeen++
	if r.Skipped {
		s.FilesSkipped++
	} else {
		s.FilesParsed++
	}
	s.RowsRead += r.Rows
	s.RowsMalformed += r.Malformed
	s.FalsePositives += r.FalsePositives
	s.Blacklisted += r.Blacklisted
	s.InvalidDomains += r.InvalidDomains
	s.Records += r.Records
}

// Summary is the outcome of an ingestion run. Files are sorted by path.
type Summary struct {
	Files []FileReport
	Stats Stats
}
