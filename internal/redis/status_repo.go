package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"go.uber.org/zap"
)

// StatusChannel is the pub/sub channel every status report is published on.
const StatusChannel = "streambed:status"

func flowStatusKey(index int) string { return "streambed:flow:" + strconv.Itoa(index) + ":status" }

// FlowStatus is the JSON stored at streambed:flow:<n>:status and
// published on StatusChannel.
//
//	{"number": 0, "state": "PLAYING", "pushed": 10, "lost": 0, "late": 0, "timestamp": 1700000000}
type FlowStatus struct {
	flow.Status
	Timestamp int64 `json:"timestamp"`
}

// StatusRepository deals with the keys streambed:flow:<n>:status.
type StatusRepository struct {
	client *Client
	log    *zap.Logger
}

func NewStatusRepository(log *zap.Logger, client *Client) *StatusRepository {
	return &StatusRepository{client: client, log: log.Named("status")}
}

// Write stores st and publishes it in one round trip.
func (r *StatusRepository) Write(ctx context.Context, st flow.Status) error {
	raw, err := json.Marshal(FlowStatus{Status: st, Timestamp: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, flowStatusKey(st.Index), raw, 0)
	pipe.Publish(ctx, StatusChannel, raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write status %d: %w", st.Index, err)
	}
	return nil
}

// Delete removes the stored status of a flow.
func (r *StatusRepository) Delete(ctx context.Context, index int) error {
	if err := r.client.Del(ctx, flowStatusKey(index)).Err(); err != nil {
		return fmt.Errorf("delete status %d: %w", index, err)
	}
	return nil
}
