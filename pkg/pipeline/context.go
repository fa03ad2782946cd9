package pipeline

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MediaInfo is metadata extracted from an ingested file
type MediaInfo struct {
	Path        string
	Title       string
	Duration    time.Duration
	FileSize    int64
	MimeType    string
	ContentHash string // perceptual hash used for deduplication
	SourceURI   string
	Duplicate   bool
}

// Segment is one tagged time range from content analysis
type Segment struct {
	Tag        string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// AnalysisResult is the output of vision-model content analysis
type AnalysisResult struct {
	Tags       map[string]float64
	Segments   []Segment
	Confidence float64
}

// EncryptionMetadata describes how a file was encrypted
type EncryptionMetadata struct {
	Ciphertext        string
	DataToEncryptHash string
	Chain             string
}

// UploadResult is the outcome of a content-addressed storage upload
type UploadResult struct {
	RootCID         string
	PieceCID        string
	TransactionHash string
}

// ErrorEntry is one recorded processing error
type ErrorEntry struct {
	Step      string
	Code      string
	Message   string
	Timestamp time.Time
	Details   map[string]any
}

// Context carries one work item through the pipeline, accumulating stage
// outputs as it goes. Each context is owned by the goroutine processing it;
// the cancellation flag is the only cross-goroutine touch point.
type Context struct {
	ID         uuid.UUID
	SourcePath string
	Options    map[string]any

	// Accumulated stage outputs
	Media         *MediaInfo
	Analysis      *AnalysisResult
	Encryption    *EncryptionMetadata
	EncryptedPath string
	Upload        *UploadResult
	SyncEntityKey string

	Errors    []ErrorEntry
	CreatedAt time.Time
	UpdatedAt time.Time

	mu        sync.Mutex
	stepData  map[string]map[string]any
	cancelled atomic.Bool
}

// NewContext creates a context for one source file
func NewContext(sourcePath string, options map[string]any) *Context {
	if options == nil {
		options = map[string]any{}
	}
	now := time.Now().UTC()
	return &Context{
		ID:         uuid.New(),
		SourcePath: sourcePath,
		Options:    options,
		CreatedAt:  now,
		UpdatedAt:  now,
		stepData:   make(map[string]map[string]any),
	}
}

// Filename returns the base name of the source file
func (c *Context) Filename() string {
	return filepath.Base(c.SourcePath)
}

// Title returns the media title, falling back to the filename stem
func (c *Context) Title() string {
	if c.Media != nil && c.Media.Title != "" {
		return c.Media.Title
	}
	name := c.Filename()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// OptionBool reads a boolean option, treating absent values as def
func (c *Context) OptionBool(name string, def bool) bool {
	v, ok := c.Options[name]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// OptionString reads a string option
func (c *Context) OptionString(name string) string {
	if v, ok := c.Options[name].(string); ok {
		return v
	}
	return ""
}

// Touch updates the UpdatedAt timestamp
func (c *Context) Touch() {
	c.UpdatedAt = time.Now().UTC()
}

// SetStepData stores a value in the step's scratch namespace
func (c *Context) SetStepData(stepName, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stepData[stepName] == nil {
		c.stepData[stepName] = make(map[string]any)
	}
	c.stepData[stepName][key] = value
	c.UpdatedAt = time.Now().UTC()
}

// StepData retrieves a value stored by a step
func (c *Context) StepData(stepName, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.stepData[stepName][key]
	return v, ok
}

// AddError appends an entry to the context's error log
func (c *Context) AddError(stepName, code, message string, details map[string]any) {
	c.Errors = append(c.Errors, ErrorEntry{
		Step:      stepName,
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Details:   details,
	})
	c.Touch()
}

// HasErrors reports whether any errors were recorded
func (c *Context) HasErrors() bool {
	return len(c.Errors) > 0
}

// ContentID returns the uploaded root content ID, if uploaded
func (c *Context) ContentID() string {
	if c.Upload != nil {
		return c.Upload.RootCID
	}
	return ""
}

// Cancel marks the context cancelled. Steps observe the flag at their next
// suspension point; the manager checks it between steps.
func (c *Context) Cancel() {
	c.cancelled.Store(true)
}

// Cancelled reports whether cancellation was requested
func (c *Context) Cancelled() bool {
	return c.cancelled.Load()
}
