package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeMarkdown   ContentType = "markdown"
	ContentTypePDF        ContentType = "pdf"
	ContentTypeTranscript ContentType = "transcript"
	ContentTypeCode       ContentType = "code"
)

func ValidContentType(t string) bool {
	switch ContentType(t) {
	case ContentTypeText, ContentTypeMarkdown, ContentTypePDF, ContentTypeTranscript, ContentTypeCode:
		return true
	}
	return false
}

type SourceKind string

const (
	SourceKindUser      SourceKind = "user"
	SourceKindFile      SourceKind = "file"
	SourceKindURL       SourceKind = "url"
	SourceKindClipboard SourceKind = "clipboard"
)

func ValidSourceKind(k string) bool {
	switch SourceKind(k) {
	case SourceKindUser, SourceKindFile, SourceKindURL, SourceKindClipboard:
		return true
	}
	return false
}

type TrustLabel string

const (
	TrustUser    TrustLabel = "user"
	TrustTrusted TrustLabel = "trusted"
	TrustUnknown TrustLabel = "unknown"
)

func ValidTrustLabel(l string) bool {
	switch TrustLabel(l) {
	case TrustUser, TrustTrusted, TrustUnknown:
		return true
	}
	return false
}

// Source records the origin of captured content. Only the trust label is
// mutable after creation.
type Source struct {
	ID         uuid.UUID  `json:"id"`
	Kind       SourceKind `json:"kind"`
	Locator    string     `json:"locator"`
	TrustLabel TrustLabel `json:"trust_label"`
	CapturedAt time.Time  `json:"captured_at"`
}

// Note is an immutable unit of captured knowledge. Notes are never updated
// or deleted once written.
type Note struct {
	ID          uuid.UUID   `json:"id"`
	Content     string      `json:"content"`
	ContentType ContentType `json:"content_type"`
	SourceID    uuid.UUID   `json:"source_id"`
	Tags        []string    `json:"tags"`
	Entities    []string    `json:"entities"`
	ContentHash string      `json:"content_hash"`
	Embedding   []float32   `json:"-"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NoteWithScore pairs a note with a similarity score from vector search.
type NoteWithScore struct {
	Note
	Score float32 `json:"score"`
}

// NormalizeTerms lower-cases, trims, deduplicates, and sorts a tag or
// entity list. Empty items are dropped.
func NormalizeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// HashContent returns the hex sha256 of the content, used for
// content-addressing notes.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
