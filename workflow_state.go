package inkwell

import (
	"fmt"
	"strings"
)

// Origin categorizes where a research item came from.
type Origin string

const (
	OriginWeb      Origin = "web"
	OriginSocial   Origin = "social"
	OriginAcademic Origin = "academic"
	OriginInternal Origin = "internal"
	OriginUser     Origin = "user"
)

// SourcePrefix returns the source-id prefix used for items of this origin.
// Prefixes are a contract consumed by the planner and writer: internal ids
// (starting with "int_") are prioritized over external ones.
func (o Origin) SourcePrefix() string {
	switch o {
	case OriginAcademic:
		return "acad"
	case OriginInternal:
		return "int"
	default:
		return string(o)
	}
}

// ValidOrigin reports whether the given origin is recognized.
func ValidOrigin(o Origin) bool {
	switch o {
	case OriginWeb, OriginSocial, OriginAcademic, OriginInternal, OriginUser:
		return true
	}
	return false
}

// BlogSize selects the target length of the generated document.
type BlogSize string

const (
	BlogSizeSmall  BlogSize = "small"
	BlogSizeMedium BlogSize = "medium"
	BlogSizeLarge  BlogSize = "large"
)

// TargetWords returns the total word count for this size class.
func (s BlogSize) TargetWords() int {
	switch s {
	case BlogSizeSmall:
		return 800
	case BlogSizeLarge:
		return 2500
	default:
		return 1500
	}
}

// SectionRange returns the allowed [min, max] section count for this size class.
func (s BlogSize) SectionRange() (int, int) {
	switch s {
	case BlogSizeSmall:
		return 3, 5
	case BlogSizeLarge:
		return 7, 12
	default:
		return 5, 8
	}
}

// ResearchItem is one gathered source. Items are immutable once created and
// accumulate across fan-out rounds; they are never removed or overwritten.
type ResearchItem struct {
	SourceID string  `json:"source_id"`
	Origin   Origin  `json:"origin"`
	Bin      string  `json:"bin,omitempty"`
	Title    string  `json:"title"`
	URL      string  `json:"url,omitempty"`
	Content  string  `json:"content"`
	Score    float64 `json:"score,omitempty"`
}

// Section is one titled unit of the final document. Created by the planner;
// its draft lives in WorkflowState.Drafts keyed by ID.
type Section struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Intent    string   `json:"intent"`
	SourceIDs []string `json:"source_ids"`
	Content   string   `json:"content,omitempty"`
}

// ReflectionVerdict is the outcome of one research reflection round.
type ReflectionVerdict struct {
	Sufficient bool   `json:"sufficient"`
	Rationale  string `json:"rationale"`
}

// StyleProfile captures the writing style the generated content should follow.
type StyleProfile struct {
	Tone              string   `json:"tone"`
	Vocabulary        string   `json:"vocabulary,omitempty"`
	SentenceStructure string   `json:"sentence_structure,omitempty"`
	Formatting        string   `json:"formatting,omitempty"`
	ForbiddenWords    []string `json:"forbidden_words,omitempty"`
}

// IsZero reports whether the profile has not been populated.
func (p StyleProfile) IsZero() bool {
	return p.Tone == "" && p.Vocabulary == "" && p.SentenceStructure == "" &&
		p.Formatting == "" && len(p.ForbiddenWords) == 0
}

// DefaultStyleProfile is used when no profile is supplied and style analysis
// is unavailable or fails.
func DefaultStyleProfile() StyleProfile {
	return StyleProfile{Tone: "neutral", Formatting: "standard"}
}

// WorkflowState is the single mutable record threaded through all stages of a
// generation thread. The engine exclusively owns the live copy during active
// execution; the checkpoint store owns the durable copy between suspensions.
// The struct is fully JSON serializable.
type WorkflowState struct {
	Topic         string       `json:"topic"`
	Audience      string       `json:"audience,omitempty"`
	Guidelines    []string     `json:"guidelines,omitempty"`
	ExtraContext  string       `json:"extra_context,omitempty"`
	Style         StyleProfile `json:"style"`
	StyleURLs     []string     `json:"style_urls,omitempty"`
	TargetDomain  string       `json:"target_domain,omitempty"`
	KnowledgeBins []string     `json:"knowledge_bins,omitempty"`
	Origins       []Origin     `json:"origins,omitempty"`
	DeepResearch  bool         `json:"deep_research,omitempty"`
	BlogSize      BlogSize     `json:"blog_size"`
	TargetWords   int          `json:"target_words"`
	Model         string       `json:"model,omitempty"`

	Research       []ResearchItem `json:"research"`
	ResearchLoops  int            `json:"research_loops"`
	SourceCounters map[string]int `json:"source_counters"`

	Outline   []Section         `json:"outline"`
	Budgets   map[string]int    `json:"budgets"`
	Drafts    map[string]string `json:"drafts"`
	Critiques map[string]string `json:"critiques"`
	Retries   map[string]int    `json:"retries"`

	// Cursor is the index of the section being worked on. Invariant: it is
	// always a valid index into Outline or equals len(Outline) once every
	// section is finished.
	Cursor int `json:"cursor"`

	FinalDocument string `json:"final_document,omitempty"`
	FinalHTML     string `json:"final_html,omitempty"`
	Failure       string `json:"failure,omitempty"`
}

// NewWorkflowState returns a state initialized with empty section maps.
func NewWorkflowState(topic string) *WorkflowState {
	return &WorkflowState{
		Topic:          topic,
		SourceCounters: map[string]int{},
		Budgets:        map[string]int{},
		Drafts:         map[string]string{},
		Critiques:      map[string]string{},
		Retries:        map[string]int{},
	}
}

// OriginEnabled reports whether the given research origin was requested.
func (s *WorkflowState) OriginEnabled(o Origin) bool {
	for _, origin := range s.Origins {
		if origin == o {
			return true
		}
	}
	return false
}

// CurrentSection returns the section under the cursor, if any.
func (s *WorkflowState) CurrentSection() (Section, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Outline) {
		return Section{}, false
	}
	return s.Outline[s.Cursor], true
}

// SourceByID looks up a research item by its source id.
func (s *WorkflowState) SourceByID(id string) (ResearchItem, bool) {
	for _, item := range s.Research {
		if item.SourceID == id {
			return item, true
		}
	}
	return ResearchItem{}, false
}

// MergeResearch is the append-only reducer invoked after each parallel
// research join. Items without a source id are assigned one from the
// per-prefix running counters (e.g. web_3, acad_2, int_abcd_1); items whose
// id is already present are skipped, making the merge duplicate tolerant.
// Existing items are never modified or reordered.
func (s *WorkflowState) MergeResearch(items []ResearchItem) {
	if s.SourceCounters == nil {
		s.SourceCounters = map[string]int{}
	}
	seen := make(map[string]struct{}, len(s.Research))
	for _, item := range s.Research {
		seen[item.SourceID] = struct{}{}
	}
	for _, item := range items {
		if item.SourceID == "" {
			prefix := item.Origin.SourcePrefix()
			if item.Origin == OriginInternal && item.Bin != "" {
				prefix = fmt.Sprintf("%s_%s", prefix, shortBin(item.Bin))
			}
			s.SourceCounters[prefix]++
			item.SourceID = fmt.Sprintf("%s_%d", prefix, s.SourceCounters[prefix])
		}
		if _, dup := seen[item.SourceID]; dup {
			continue
		}
		seen[item.SourceID] = struct{}{}
		s.Research = append(s.Research, item)
	}
}

// ClearSectionWork discards per-section progress and resets the cursor.
// Called when a new outline takes effect (fresh plan or approval edit), so
// writing always restarts from section zero.
func (s *WorkflowState) ClearSectionWork() {
	s.Drafts = map[string]string{}
	s.Critiques = map[string]string{}
	s.Retries = map[string]int{}
	s.Cursor = 0
}

// Clone returns a deep copy of the state. The live and checkpointed copies
// must never share mutable maps or slices.
func (s *WorkflowState) Clone() *WorkflowState {
	clone := *s
	clone.Guidelines = append([]string(nil), s.Guidelines...)
	clone.StyleURLs = append([]string(nil), s.StyleURLs...)
	clone.KnowledgeBins = append([]string(nil), s.KnowledgeBins...)
	clone.Origins = append([]Origin(nil), s.Origins...)
	clone.Style.ForbiddenWords = append([]string(nil), s.Style.ForbiddenWords...)
	clone.Research = append([]ResearchItem(nil), s.Research...)
	clone.Outline = make([]Section, len(s.Outline))
	for i, sec := range s.Outline {
		sec.SourceIDs = append([]string(nil), sec.SourceIDs...)
		clone.Outline[i] = sec
	}
	clone.SourceCounters = copyIntMap(s.SourceCounters)
	clone.Budgets = copyIntMap(s.Budgets)
	clone.Drafts = copyStringMap(s.Drafts)
	clone.Critiques = copyStringMap(s.Critiques)
	clone.Retries = copyIntMap(s.Retries)
	return &clone
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

// shortBin compresses a knowledge-bin id into the short token used inside
// internal source ids.
func shortBin(bin string) string {
	bin = strings.ToLower(strings.ReplaceAll(bin, " ", ""))
	if len(bin) > 4 {
		return bin[:4]
	}
	return bin
}
