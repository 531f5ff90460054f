// Package report holds the error aggregation model written at the end of a run.
package report

import (
	"bytes"
	"encoding/json"
	"sort"
	"sync"
)

// UnspecifiedMessage is the key used for diagnostics that carry no text.
const UnspecifiedMessage = "unspecified error"

// Occurrence is the position of one sighting of a message.
// Either coordinate is -1 when the parser supplied no position.
type Occurrence struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// ErrorInfo counts the sightings of one normalized message in a document.
type ErrorInfo struct {
	occurrences []Occurrence
}

// AddOccurrence records a sighting. Duplicates are kept.
func (e *ErrorInfo) AddOccurrence(line, column int) {
	e.occurrences = append(e.occurrences, Occurrence{Line: line, Column: column})
}

// Count returns the number of recorded sightings.
func (e *ErrorInfo) Count() int {
	if e == nil {
		return 0
	}
	return len(e.occurrences)
}

// Occurrences returns a copy of the sightings in insertion order.
func (e *ErrorInfo) Occurrences() []Occurrence {
	if e == nil {
		return nil
	}
	out := make([]Occurrence, len(e.occurrences))
	copy(out, e.occurrences)
	return out
}

type errorInfoJSON struct {
	Count       int          `json:"count"`
	Occurrences []Occurrence `json:"occurrences"`
}

// MarshalJSON writes the count next to the occurrence list.
func (e *ErrorInfo) MarshalJSON() ([]byte, error) {
	occ := e.occurrences
	if occ == nil {
		occ = []Occurrence{}
	}
	return json.Marshal(errorInfoJSON{Count: len(occ), Occurrences: occ})
}

// UnmarshalJSON reads the occurrence list; the count is derived.
func (e *ErrorInfo) UnmarshalJSON(data []byte) error {
	var raw errorInfoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.occurrences = raw.Occurrences
	return nil
}

// Document maps normalized messages to their sightings within one document.
type Document map[string]*ErrorInfo

// NewDocument returns an empty per-document report.
func NewDocument() Document {
	return make(Document)
}

// Add records a sighting of message. The empty message is filed under
// UnspecifiedMessage so the map never holds an empty key.
func (d Document) Add(message string, line, column int) {
	if message == "" {
		message = UnspecifiedMessage
	}
	info, ok := d[message]
	if !ok {
		info = &ErrorInfo{}
		d[message] = info
	}
	info.AddOccurrence(line, column)
}

// Messages returns the keys in sorted order.
func (d Document) Messages() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Total returns the number of sightings across all messages.
func (d Document) Total() int {
	n := 0
	for _, info := range d {
		n += info.Count()
	}
	return n
}

// Aggregate maps document names to their reports. It is safe for
// concurrent use; each name is stored at most once.
type Aggregate struct {
	docs map[string]Document
	mu   sync.Mutex
}

// NewAggregate returns an empty aggregate.
func NewAggregate() *Aggregate {
	return &Aggregate{docs: make(map[string]Document)}
}

// Put stores the report for name. A second Put for the same name replaces
// the first; the runner never validates one name twice.
func (a *Aggregate) Put(name string, doc Document) {
	if doc == nil {
		doc = NewDocument()
	}
	a.mu.Lock()
	a.docs[name] = doc
	a.mu.Unlock()
}

// Get returns the report stored for name.
func (a *Aggregate) Get(name string) (Document, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	doc, ok := a.docs[name]
	return doc, ok
}

// Len returns the number of documents.
func (a *Aggregate) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.docs)
}

// Names returns the document names in sorted order.
func (a *Aggregate) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, 0, len(a.docs))
	for name := range a.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON writes the document map; encoding/json sorts the keys.
// Messages keep their '<', '>' and '&' unescaped.
func (a *Aggregate) MarshalJSON() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(a.docs); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON replaces the aggregate content with data.
func (a *Aggregate) UnmarshalJSON(data []byte) error {
	docs := make(map[string]Document)
	if err := json.Unmarshal(data, &docs); err != nil {
		return err
	}
	a.mu.Lock()
	a.docs = docs
	a.mu.Unlock()
	return nil
}
