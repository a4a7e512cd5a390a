// Package cxdb provides a sink that persists exceptions to cxdb as SystemMessage
// items, one cxdb context per realm.
package cxdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	cxdbclient "github.com/strongdm/ai-cxdb/clients/go"
	cxdtypes "github.com/strongdm/ai-cxdb/clients/go/types"

	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc"
)

// Client is the subset of the cxdb client the sink uses.
// *cxdbclient.Client satisfies it.
type Client interface {
	CreateContext(ctx context.Context, baseTurnID uint64) (*cxdbclient.ContextHead, error)
	AppendTurn(ctx context.Context, req *cxdbclient.AppendRequest) (*cxdbclient.AppendResult, error)
}

// Option configures the cxdb sink.
type Option func(*config)

type config struct {
	labels    []string
	clientTag string
}

// WithLabels sets the labels attached to each realm context.
func WithLabels(labels []string) Option {
	return func(c *config) {
		c.labels = labels
	}
}

// WithClientTag sets the client tag attached to each realm context.
func WithClientTag(tag string) Option {
	return func(c *config) {
		c.clientTag = tag
	}
}

// realmContext tracks the cxdb context backing one realm.
type realmContext struct {
	id uint64

	// described is set once a turn carrying ContextMetadata was appended.
	described bool
}

type sink struct {
	client    Client
	labels    []string
	clientTag string

	mu     sync.Mutex
	realms map[string]*realmContext
}

// New creates a sink that writes to cxdb.
func New(client Client, opts ...Option) jsexc.Sink {
	cfg := &config{
		labels:    []string{"js-exception"},
		clientTag: "jsexc",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &sink{
		client:    client,
		labels:    cfg.labels,
		clientTag: cfg.clientTag,
		realms:    make(map[string]*realmContext),
	}
}

// Write appends the event to the realm's cxdb context, creating it on first use.
// Writes are serialized so a realm never gets two contexts.
func (s *sink) Write(ctx context.Context, event jsexc.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rc, ok := s.realms[event.RealmID]
	if !ok {
		head, err := s.client.CreateContext(ctx, 0)
		if err != nil {
			return fmt.Errorf("create realm context: %w", err)
		}
		rc = &realmContext{id: head.ContextID}
		s.realms[event.RealmID] = rc
	}

	item := s.buildConversationItem(event, !rc.described)

	payload, err := cxdbclient.EncodeMsgpack(item)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req := &cxdbclient.AppendRequest{
		ContextID:      rc.id,
		ParentTurnID:   0,
		TypeID:         cxdtypes.TypeIDConversationItem,
		TypeVersion:    cxdtypes.TypeVersionConversationItem,
		Payload:        payload,
		IdempotencyKey: event.EventID,
	}
	if _, err := s.client.AppendTurn(ctx, req); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}

	rc.described = true
	return nil
}

// buildConversationItem wraps the event in a canonical ConversationItem.
func (s *sink) buildConversationItem(event jsexc.Event, describe bool) *cxdtypes.ConversationItem {
	item := &cxdtypes.ConversationItem{
		ItemType:  cxdtypes.ItemTypeSystem,
		Status:    cxdtypes.ItemStatusComplete,
		Timestamp: event.Timestamp.UnixMilli(),
		ID:        event.EventID,
		System: &cxdtypes.SystemMessage{
			Kind:    cxdtypes.SystemKindError,
			Title:   title(event.Exception),
			Content: buildDetails(event),
		},
	}

	if describe {
		labels := append([]string(nil), s.labels...)
		if event.RealmID != "" {
			labels = append(labels, "realm:"+event.RealmID)
		}
		item.ContextMetadata = &cxdtypes.ContextMetadata{
			Labels:    labels,
			ClientTag: s.clientTag,
		}
	}

	return item
}

// title renders "Name: message", capped at 100 bytes.
func title(e jsexc.JSException) string {
	t := e.Name()
	if msg := e.Message(); msg != "" && msg != t {
		const maxMsgLen = 80
		if len(msg) > maxMsgLen {
			msg = msg[:maxMsgLen] + "..."
		}
		t += ": " + msg
	}
	if len(t) > 100 {
		t = t[:97] + "..."
	}
	return t
}

// buildDetails encodes the event as JSON for SystemMessage.Content.
func buildDetails(event jsexc.Event) string {
	details := map[string]any{
		"event_id":    event.EventID,
		"fingerprint": event.Fingerprint,
		"exception":   event.Exception,
	}
	if event.RealmID != "" {
		details["realm_id"] = event.RealmID
	}
	if len(event.Metadata) > 0 {
		details["metadata"] = event.Metadata
	}
	if event.Host != nil {
		details["host"] = event.Host
	}

	b, err := json.Marshal(details)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to encode details: %s"}`, err)
	}
	return string(b)
}

// Flush is a no-op; writes are synchronous.
func (s *sink) Flush(ctx context.Context) error {
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *sink) Close() error {
	return nil
}
