// Package notify publishes ingestion outcomes to downstream consumers. Every
// backend is best-effort: a failed publish is logged and counted, it never
// fails the ingestion that produced it.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/canopy-network/stacksx/pkg/metrics"
	"github.com/canopy-network/stacksx/pkg/reorg"
	"go.uber.org/zap"
)

type Topic string

const (
	TopicBlockCanonical   Topic = "block.canonical"
	TopicBlockReorg       Topic = "block.reorg"
	TopicBurnBlockApplied Topic = "burn_block.applied"
	TopicMempoolDropped   Topic = "mempool.dropped"
)

var Topics = []Topic{TopicBlockReorg, TopicBlockCanonical, TopicBurnBlockApplied, TopicMempoolDropped}

// Message is one notification. ID is the ingestion request id, so all
// messages caused by one request share it.
type Message struct {
	ID      string    `json:"id"`
	Lineage string    `json:"lineage"`
	Topic   Topic     `json:"topic"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s notification: %w", m.Topic, err)
	}
	return data, nil
}

// Channel names the pub/sub channel of a topic, e.g. "stacksx:mainnet:block.canonical".
func Channel(lineage string, topic Topic) string {
	return fmt.Sprintf("stacksx:%s:%s", lineage, topic)
}

// BlockCanonical announces a block that became the canonical head.
type BlockCanonical struct {
	Height               uint64 `json:"height"`
	BlockHash            string `json:"block_hash"`
	IndexBlockHash       string `json:"index_block_hash"`
	ParentIndexBlockHash string `json:"parent_index_block_hash"`
	BurnBlockHeight      uint64 `json:"burn_block_height"`
	Transactions         int    `json:"transactions"`
	Events               int    `json:"events"`
	TipVersion           uint64 `json:"tip_version"`
}

// BlockReorg announces a canonical chain switch.
type BlockReorg struct {
	CommonAncestor reorg.BlockRef   `json:"common_ancestor"`
	Orphaned       []reorg.BlockRef `json:"orphaned"`
	NewCanonical   []reorg.BlockRef `json:"new_canonical"`
}

type BurnBlockApplied struct {
	Hash       string `json:"burn_block_hash"`
	Height     uint64 `json:"burn_block_height"`
	BurnAmount string `json:"burn_amount"`
	SplitTotal string `json:"split_total"`
	Recipients int    `json:"recipients"`
	Overflow   bool   `json:"overflow"`
}

type MempoolDropped struct {
	TxIDs  []string `json:"txids"`
	Reason string   `json:"reason"`
}

// Publisher is one notification backend.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Fanout publishes each message to every backend in turn.
type Fanout struct {
	logger     *zap.Logger
	metrics    *metrics.Ingest
	publishers []Publisher
}

func NewFanout(logger *zap.Logger, m *metrics.Ingest, publishers ...Publisher) *Fanout {
	return &Fanout{logger: logger, metrics: m, publishers: publishers}
}

// Backends returns the names of the configured backends.
func (f *Fanout) Backends() []string {
	names := make([]string, len(f.publishers))
	for i, p := range f.publishers {
		names[i] = p.Name()
	}
	return names
}

// Publish delivers msg to all backends. Failures of individual backends are
// logged and returned joined; the remaining backends are still tried.
func (f *Fanout) Publish(ctx context.Context, msg Message) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, msg); err != nil {
			f.logger.Warn("Failed to publish notification",
				zap.String("backend", p.Name()),
				zap.String("topic", string(msg.Topic)),
				zap.String("request_id", msg.ID),
				zap.Error(err))
			if f.metrics != nil {
				f.metrics.NotifyFailureTotal.WithLabelValues(p.Name(), string(msg.Topic)).Inc()
			}
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) Close() error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
