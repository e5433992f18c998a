package node

// BinaryData is a named binary attachment carried by a work item. Data holds
// the raw file bytes; MimeType and FileName are advisory metadata used to
// decide whether the payload needs transcoding.
type BinaryData struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mimeType,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

// Item is a single unit of work: a JSON document plus zero or more binary
// attachments keyed by property name.
type Item struct {
	JSON   map[string]any        `json:"json"`
	Binary map[string]BinaryData `json:"binary,omitempty"`
}

// Result is the outcome of processing one work item. PairedItem is the index
// of the input item that produced this result, so downstream consumers can
// correlate outputs with inputs even when some items failed. Error is set
// only for items that failed in continue-on-fail mode.
type Result struct {
	JSON       map[string]any `json:"json"`
	PairedItem int            `json:"pairedItem"`
	Error      string         `json:"error,omitempty"`
}
