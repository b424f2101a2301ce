package domain

// Status is the lifecycle state of an analysis task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusUploading  Status = "uploading"
	StatusParsing    Status = "parsing"
	StatusProcessing Status = "processing"
	StatusExtracting Status = "extracting"
	StatusAnalyzing  Status = "analyzing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

var statusOrdinals = map[Status]int{
	StatusPending:    0,
	StatusUploading:  1,
	StatusParsing:    2,
	StatusProcessing: 3,
	StatusExtracting: 4,
	StatusAnalyzing:  5,
	StatusComplete:   6,
	StatusError:      6,
	StatusCancelled:  6,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusOrdinals[s]
	return ok
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusCancelled
}

// Ordinal is the position of s in the forward pipeline. All terminal
// states share the last position; unknown statuses return -1.
// It is used for progress band arithmetic only, never for identity.
func (s Status) Ordinal() int {
	if o, ok := statusOrdinals[s]; ok {
		return o
	}
	return -1
}

func (s Status) String() string {
	return string(s)
}
