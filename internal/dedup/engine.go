// Package dedup decides whether a proposed outbound contact already exists
// at the provider. Matching cascades from the external-id convention through
// phone indexes to name similarity, each positive hit re-verified against the
// live API before being trusted; stale cache entries are evicted on the spot.
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/caselink/contactsync/internal/errors"
	"github.com/caselink/contactsync/internal/logging"
	"github.com/caselink/contactsync/internal/mapper"
	"github.com/caselink/contactsync/internal/observability/metrics"
	"github.com/caselink/contactsync/internal/provider"
)

var logger = logging.ForService("dedup")

// Match reasons reported in Result and used as metric labels.
const (
	ReasonExternalID      = "external_id"
	ReasonPhoneExact      = "phone_exact"
	ReasonPhoneNormalized = "phone_normalized"
	ReasonPhonePartial    = "phone_partial"
	ReasonNameSimilarity  = "name_similarity"
	ReasonNoMatch         = "no_match"
)

// Match confidences are fixed per tier; name similarity reports the computed
// score.
const (
	confidenceExternalID = 1.0
	confidencePhone      = 0.9
	// nameMatchPhoneBonus rewards a name candidate whose phone also lines up.
	nameMatchPhoneBonus = 0.05
	// nameMatchCap keeps boosted name matches below external-id certainty.
	nameMatchCap = 0.99

	// DefaultNameSimilarityThreshold is the minimum accepted name score.
	DefaultNameSimilarityThreshold = 0.85
)

// Result is the outcome of one duplicate check. Confidence only drives the
// create-vs-update branch for the current sync pass; it is never persisted.
type Result struct {
	IsDuplicate bool
	RemoteID    string
	Confidence  float64
	MatchReason string
}

// Engine holds the in-memory contact indexes. All index mutation happens
// under one mutex so concurrent batch members interleave safely; remote
// verification calls run outside the lock.
type Engine struct {
	client    provider.Interface
	threshold float64
	metrics   *metrics.DedupMetrics

	// snapshotTTL bounds snapshot staleness; zero keeps the snapshot for
	// the engine's lifetime.
	snapshotTTL time.Duration

	mu       sync.Mutex
	loaded   bool
	loadedAt time.Time
	loading  chan struct{}

	byExternalID      map[string]string
	byExactPhone      map[string]string
	byNormalizedPhone map[string]string
	byPartialPhone    map[string]string
	contacts          map[string]provider.Contact
}

// NewEngine creates a duplicate detection engine over the given API client.
// A threshold of 0 selects the default.
func NewEngine(client provider.Interface, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultNameSimilarityThreshold
	}
	return &Engine{
		client:            client,
		threshold:         threshold,
		byExternalID:      make(map[string]string),
		byExactPhone:      make(map[string]string),
		byNormalizedPhone: make(map[string]string),
		byPartialPhone:    make(map[string]string),
		contacts:          make(map[string]provider.Contact),
	}
}

// SetMetrics attaches Prometheus collectors to the engine. Optional.
func (e *Engine) SetMetrics(m *metrics.DedupMetrics) {
	e.metrics = m
}

// SetSnapshotTTL bounds how long a loaded snapshot is trusted before the next
// check triggers a full reload. Zero disables expiry.
func (e *Engine) SetSnapshotTTL(ttl time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshotTTL = ttl
}

// CheckDuplicate reports whether a remote contact already represents the
// proposed outbound contact, cascading from the most to the least reliable
// strategy.
func (e *Engine) CheckDuplicate(ctx context.Context, req *provider.ContactRequest) (*Result, error) {
	if err := e.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	if res, err := e.checkExternalID(ctx, req.ExternalID); err != nil || res != nil {
		return e.observed(res, err)
	}
	if res, err := e.checkPhones(ctx, req.PhoneNumbers); err != nil || res != nil {
		return e.observed(res, err)
	}
	if res, err := e.checkName(ctx, req); err != nil || res != nil {
		return e.observed(res, err)
	}

	return e.observed(&Result{MatchReason: ReasonNoMatch}, nil)
}

func (e *Engine) observed(res *Result, err error) (*Result, error) {
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		outcome := "unique"
		if res.IsDuplicate {
			outcome = "duplicate"
		}
		e.metrics.ChecksTotal.WithLabelValues(outcome, res.MatchReason).Inc()
	}
	return res, nil
}

// checkExternalID resolves the O(1) external-id index, trusting a hit only
// after a live existence check. A cached id that 404s is evicted and the
// lookup proceeds as a miss.
func (e *Engine) checkExternalID(ctx context.Context, externalID string) (*Result, error) {
	if externalID == "" {
		return nil, nil
	}

	e.mu.Lock()
	remoteID, ok := e.byExternalID[externalID]
	e.mu.Unlock()
	if !ok {
		return nil, nil
	}

	contact, err := e.verify(ctx, remoteID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, nil
	}
	return &Result{
		IsDuplicate: true,
		RemoteID:    contact.ID,
		Confidence:  confidenceExternalID,
		MatchReason: ReasonExternalID,
	}, nil
}

// checkPhones tries the three phone index tiers in decreasing precision.
func (e *Engine) checkPhones(ctx context.Context, phones []string) (*Result, error) {
	for _, phone := range phones {
		tiers := []struct {
			key    string
			reason string
		}{
			{phone, ReasonPhoneExact},
			{mapper.NormalizePhone(phone), ReasonPhoneNormalized},
			{mapper.LastSevenDigits(phone), ReasonPhonePartial},
		}
		for _, tier := range tiers {
			if tier.key == "" {
				continue
			}
			remoteID, ok := e.phoneIndexLookup(tier.key, tier.reason)
			if !ok {
				continue
			}
			contact, err := e.verify(ctx, remoteID)
			if err != nil {
				return nil, err
			}
			if contact == nil {
				continue
			}
			return &Result{
				IsDuplicate: true,
				RemoteID:    contact.ID,
				Confidence:  confidencePhone,
				MatchReason: tier.reason,
			}, nil
		}
	}
	return nil, nil
}

// phoneIndexLookup probes one phone tier. Both the index field and its
// contents are read under the lock: a snapshot reload replaces the maps.
func (e *Engine) phoneIndexLookup(key, reason string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	index := e.byExactPhone
	switch reason {
	case ReasonPhoneNormalized:
		index = e.byNormalizedPhone
	case ReasonPhonePartial:
		index = e.byPartialPhone
	}
	remoteID, ok := index[key]
	return remoteID, ok
}

// checkName scans cached contacts for the best name-similarity candidate,
// falling back to a remote search when the cache holds nothing to scan.
func (e *Engine) checkName(ctx context.Context, req *provider.ContactRequest) (*Result, error) {
	e.mu.Lock()
	candidates := make([]provider.Contact, 0, len(e.contacts))
	for _, contact := range e.contacts {
		candidates = append(candidates, contact)
	}
	e.mu.Unlock()

	if len(candidates) == 0 {
		remote, err := e.client.SearchContacts(ctx, req.Name)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		candidates = remote
	}

	bestID, bestScore := bestNameCandidate(req, candidates, e.threshold)
	if bestID == "" {
		return nil, nil
	}

	contact, err := e.verify(ctx, bestID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, nil
	}
	return &Result{
		IsDuplicate: true,
		RemoteID:    contact.ID,
		Confidence:  bestScore,
		MatchReason: ReasonNameSimilarity,
	}, nil
}

// bestNameCandidate returns the highest-scoring candidate at or above the
// threshold, with the phone bonus applied before thresholding.
func bestNameCandidate(req *provider.ContactRequest, candidates []provider.Contact, threshold float64) (string, float64) {
	reqPhones := make(map[string]struct{}, len(req.PhoneNumbers))
	for _, phone := range req.PhoneNumbers {
		if normalized := mapper.NormalizePhone(phone); normalized != "" {
			reqPhones[normalized] = struct{}{}
		}
	}

	bestID := ""
	bestScore := 0.0
	for i := range candidates {
		score := NameSimilarity(req.Name, candidates[i].Name)
		if score <= 0 {
			continue
		}
		for _, phone := range candidates[i].PhoneNumbers {
			if _, ok := reqPhones[mapper.NormalizePhone(phone)]; ok {
				score += nameMatchPhoneBonus
				if score > nameMatchCap {
					score = nameMatchCap
				}
				break
			}
		}
		if score > bestScore {
			bestID = candidates[i].ID
			bestScore = score
		}
	}
	if bestScore < threshold {
		return "", 0
	}
	return bestID, bestScore
}

// verify confirms a cached remote id still resolves. A 404 evicts the stale
// entry and reports a miss; any other failure propagates. On success the
// fresh contact is re-indexed so the cache tracks remote edits.
func (e *Engine) verify(ctx context.Context, remoteID string) (*provider.Contact, error) {
	contact, err := e.client.GetContact(ctx, remoteID)
	if err != nil {
		if errors.IsNotFound(err) {
			logger.Debug("evicting stale cached contact", "remote_id", remoteID)
			e.Evict(remoteID)
			if e.metrics != nil {
				e.metrics.CacheEvictions.Inc()
			}
			return nil, nil
		}
		return nil, err
	}
	e.IndexContact(contact)
	return contact, nil
}

// ensureLoaded populates the indexes from the full remote contact listing
// exactly once. Concurrent callers share a single in-flight load; a failed
// load leaves the engine unloaded so the next caller retries.
func (e *Engine) ensureLoaded(ctx context.Context) error {
	for {
		e.mu.Lock()
		if e.loaded && e.snapshotTTL > 0 && time.Since(e.loadedAt) > e.snapshotTTL {
			logger.Debug("contact snapshot expired, reloading", "age", time.Since(e.loadedAt))
			e.loaded = false
		}
		if e.loaded {
			e.mu.Unlock()
			return nil
		}
		if e.loading != nil {
			ch := e.loading
			e.mu.Unlock()
			select {
			case <-ch:
				continue
			case <-ctx.Done():
				return errors.Newf("waiting for contact snapshot: %w", ctx.Err()).
					Category(errors.CategoryCancellation).
					Component("dedup").
					Build()
			}
		}
		ch := make(chan struct{})
		e.loading = ch
		e.mu.Unlock()

		contacts, err := e.client.ListAllContacts(ctx)

		e.mu.Lock()
		e.loading = nil
		if err == nil {
			e.byExternalID = make(map[string]string, len(contacts))
			e.byExactPhone = make(map[string]string, len(contacts))
			e.byNormalizedPhone = make(map[string]string, len(contacts))
			e.byPartialPhone = make(map[string]string, len(contacts))
			e.contacts = make(map[string]provider.Contact, len(contacts))
			for i := range contacts {
				e.indexLocked(&contacts[i])
			}
			e.loaded = true
			e.loadedAt = time.Now()
			if e.metrics != nil {
				e.metrics.SnapshotLoads.Inc()
				e.metrics.IndexedContacts.Set(float64(len(e.contacts)))
			}
			logger.Info("loaded remote contact snapshot", "contacts", len(contacts))
		}
		e.mu.Unlock()
		close(ch)
		if err != nil {
			return err
		}
		return nil
	}
}

// IndexContact adds or refreshes one contact in every index. Idempotent:
// prior entries for the same id are purged first so stale phone numbers
// cannot linger after an update.
func (e *Engine) IndexContact(contact *provider.Contact) {
	if contact == nil || contact.ID == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indexLocked(contact)
	if e.metrics != nil {
		e.metrics.IndexedContacts.Set(float64(len(e.contacts)))
	}
}

func (e *Engine) indexLocked(contact *provider.Contact) {
	e.purgeLocked(contact.ID)

	e.contacts[contact.ID] = *contact
	if contact.ExternalID != "" {
		e.byExternalID[contact.ExternalID] = contact.ID
	}
	for _, phone := range contact.PhoneNumbers {
		if phone == "" {
			continue
		}
		e.byExactPhone[phone] = contact.ID
		if normalized := mapper.NormalizePhone(phone); normalized != "" {
			e.byNormalizedPhone[normalized] = contact.ID
		}
		if partial := mapper.LastSevenDigits(phone); partial != "" {
			e.byPartialPhone[partial] = contact.ID
		}
	}
}

// Evict removes a contact from every index.
func (e *Engine) Evict(remoteID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.purgeLocked(remoteID)
	if e.metrics != nil {
		e.metrics.IndexedContacts.Set(float64(len(e.contacts)))
	}
}

// purgeLocked drops every index entry pointing at the given id. Caller holds
// the mutex.
func (e *Engine) purgeLocked(remoteID string) {
	delete(e.contacts, remoteID)
	for key, id := range e.byExternalID {
		if id == remoteID {
			delete(e.byExternalID, key)
		}
	}
	for key, id := range e.byExactPhone {
		if id == remoteID {
			delete(e.byExactPhone, key)
		}
	}
	for key, id := range e.byNormalizedPhone {
		if id == remoteID {
			delete(e.byNormalizedPhone, key)
		}
	}
	for key, id := range e.byPartialPhone {
		if id == remoteID {
			delete(e.byPartialPhone, key)
		}
	}
}
