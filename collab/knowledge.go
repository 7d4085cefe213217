// Package collab lets agents publish knowledge items, locate an expert for a
// sub-task and request peer review of a result before it is returned. The
// knowledge store is append-only and indexed by domain tag with per-tag
// locks; peer review runs as message-passing between reviewer goroutines and
// the manager, with the task status as a small finite-state machine.
package collab

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/gridironlabs/huddle/core"
	"github.com/gridironlabs/huddle/logging"
	"github.com/gridironlabs/huddle/registry"
	"github.com/gridironlabs/huddle/store"
)

const tagShardCount = 16

// KnowledgeItem is a piece of knowledge an agent published. Immutable once
// published; a later item on the same topic supersedes (never overwrites) an
// earlier one by naming it in Supersedes.
type KnowledgeItem struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	Tags        []string  `json:"tags"`
	Supersedes  string    `json:"supersedes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type tagShard struct {
	mu    sync.RWMutex
	byTag map[string][]KnowledgeItem
}

func (m *Manager) shardForTag(tag string) *tagShard {
	h := fnv.New32a()
	h.Write([]byte(tag))
	return m.tagShards[h.Sum32()%tagShardCount]
}

// PublishKnowledge validates and appends an item, indexing it under each of
// its domain tags. The id and creation time are assigned here; the returned
// copy carries them. Persistence failures are logged, not surfaced: the item
// remains available in process.
func (m *Manager) PublishKnowledge(ctx context.Context, item KnowledgeItem) (*KnowledgeItem, error) {
	if item.AgentID == "" {
		return nil, core.NewError(core.KindValidation, "knowledge item missing publishing agent id")
	}
	if item.Confidence < 0 || item.Confidence > 1 {
		return nil, core.NewError(core.KindValidation, "knowledge confidence %v outside [0,1]", item.Confidence)
	}
	if len(item.Tags) == 0 {
		return nil, core.NewError(core.KindValidation, "knowledge item needs at least one domain tag")
	}
	if item.ID == "" {
		item.ID = core.NewID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	m.index(item)

	if m.store != nil {
		if err := m.store.AppendKnowledge(ctx, knowledgeRecord(item)); err != nil {
			m.logger.Warn("knowledge persistence failed", "item_id", item.ID, "error", err)
		}
	}
	return &item, nil
}

func (m *Manager) index(item KnowledgeItem) {
	for _, tag := range item.Tags {
		sh := m.shardForTag(tag)
		sh.mu.Lock()
		sh.byTag[tag] = append(sh.byTag[tag], item)
		sh.mu.Unlock()
	}
}

// FindByTag returns the live (not superseded) items indexed under tag,
// highest confidence first, newest first on ties.
func (m *Manager) FindByTag(tag string) []KnowledgeItem {
	sh := m.shardForTag(tag)
	sh.mu.RLock()
	bucket := sh.byTag[tag]
	items := make([]KnowledgeItem, len(bucket))
	copy(items, bucket)
	sh.mu.RUnlock()

	superseded := make(map[string]struct{})
	for _, it := range items {
		if it.Supersedes != "" {
			superseded[it.Supersedes] = struct{}{}
		}
	}
	live := items[:0]
	for _, it := range items {
		if _, gone := superseded[it.ID]; !gone {
			live = append(live, it)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].Confidence != live[j].Confidence {
			return live[i].Confidence > live[j].Confidence
		}
		return live[i].CreatedAt.After(live[j].CreatedAt)
	})
	return live
}

// LoadPersisted replays the knowledge log from the store into the tag index.
// Replay is idempotent: items already indexed are skipped.
func (m *Manager) LoadPersisted(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	recs, err := m.store.Knowledge(ctx)
	if err != nil {
		return err
	}
	m.replayMu.Lock()
	defer m.replayMu.Unlock()
	for _, rec := range recs {
		if _, seen := m.replayed[rec.ID]; seen {
			continue
		}
		m.replayed[rec.ID] = struct{}{}
		m.index(knowledgeItem(rec))
	}
	return nil
}

func knowledgeRecord(it KnowledgeItem) store.KnowledgeRecord {
	return store.KnowledgeRecord{
		ID:          it.ID,
		AgentID:     it.AgentID,
		Type:        it.Type,
		Description: it.Description,
		Confidence:  it.Confidence,
		Tags:        it.Tags,
		Supersedes:  it.Supersedes,
		CreatedAt:   it.CreatedAt,
	}
}

func knowledgeItem(rec store.KnowledgeRecord) KnowledgeItem {
	return KnowledgeItem{
		ID:          rec.ID,
		AgentID:     rec.AgentID,
		Type:        rec.Type,
		Description: rec.Description,
		Confidence:  rec.Confidence,
		Tags:        rec.Tags,
		Supersedes:  rec.Supersedes,
		CreatedAt:   rec.CreatedAt,
	}
}

// FindExpert locates the best-suited agent for a capability name or domain
// tag, excluding the requester. Agents exposing a matching available
// capability are preferred, ranked by lowest current load; when none match,
// agents that published knowledge under the tag are considered. Returns ""
// when no expert exists.
func (m *Manager) FindExpert(capabilityOrTag, excludeAgentID string) string {
	var best *registry.Instance
	for _, inst := range m.registry.Instances() {
		desc := inst.Descriptor()
		if desc.AgentID == excludeAgentID {
			continue
		}
		cap, ok := desc.Capability(capabilityOrTag)
		if !ok || !cap.Available {
			continue
		}
		if best == nil || inst.Load() < best.Load() {
			best = inst
		}
	}
	if best != nil {
		return best.Descriptor().AgentID
	}

	// Fall back to knowledge authorship under the tag.
	for _, item := range m.FindByTag(capabilityOrTag) {
		if item.AgentID == excludeAgentID {
			continue
		}
		if inst, ok := m.registry.Instance(item.AgentID); ok && !inst.AtCapacity() {
			return item.AgentID
		}
	}
	return ""
}

// Manager is the collaboration manager. See the package documentation.
type Manager struct {
	registry  *registry.Registry
	store     store.Store
	logger    logging.Logger
	reviewers int
	timeout   time.Duration

	tagShards [tagShardCount]*tagShard

	replayMu sync.Mutex
	replayed map[string]struct{}

	tasksMu sync.RWMutex
	tasks   map[string]*Task
}

// Options configures a Manager.
type Options struct {
	// Reviewers is how many reviewer agents a peer review assigns. Default 1.
	Reviewers int
	// ReviewTimeout bounds each reviewer invocation. Default 10s.
	ReviewTimeout time.Duration
	// Store persists knowledge items; nil keeps them in process only.
	Store store.Store
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// NewManager creates a Manager over the given registry.
func NewManager(reg *registry.Registry, optFns ...func(o *Options)) *Manager {
	opts := Options{Reviewers: 1, ReviewTimeout: 10 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}
	m := &Manager{
		registry:  reg,
		store:     opts.Store,
		logger:    logging.OrNoOp(opts.Logger),
		reviewers: opts.Reviewers,
		timeout:   opts.ReviewTimeout,
		replayed:  make(map[string]struct{}),
		tasks:     make(map[string]*Task),
	}
	for i := range m.tagShards {
		m.tagShards[i] = &tagShard{byTag: make(map[string][]KnowledgeItem)}
	}
	return m
}
