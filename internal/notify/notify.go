// Package notify 将状态变更转换为实时事件，投递由外部 Pub/Sub 负责
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/thtun0709/beswd/config"
	"github.com/thtun0709/beswd/internal/metrics"
)

// Event 事件名，与前端订阅保持一致
type Event string

const (
	EventLeaderChosen         Event = "leader_chosen"
	EventMentorResponse       Event = "mentor_response"
	EventMentorRequestCreated Event = "mentor_request_created"
	EventTeamCreated          Event = "team_created"
	EventTeamUpdated          Event = "team_updated"
	EventTeamDeleted          Event = "team_deleted"
	EventPostCreated          Event = "post_created"
	EventPostUpdated          Event = "post_updated"
	EventPostDeleted          Event = "post_deleted"
	EventCommentCreated       Event = "comment_created"
	EventCommentDeleted       Event = "comment_deleted"
)

// Dispatcher 通知分发接口，注入到各 Service
type Dispatcher interface {
	NotifyBroadcast(ctx context.Context, event Event, payload any) error
	NotifyPrincipal(ctx context.Context, to Recipient, event Event, payload any) error
}

// Recipient 私信接收方；学生与讲师分表存储，ID 可能重合，必须连同角色一起定位
type Recipient struct {
	Role string
	ID   string
}

// channelKey 形如 student:SE150001
func (r Recipient) channelKey() string { return r.Role + ":" + r.ID }

// Envelope 频道中传输的消息体
type Envelope struct {
	Event      Event     `json:"event"`
	Target     string    `json:"target,omitempty"` // 为空表示广播
	TargetRole string    `json:"target_role,omitempty"`
	Payload    any       `json:"payload"`
	SentAt     time.Time `json:"sent_at"`
}

// Publisher 频道发布能力，*redis.Client 满足该接口
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
}

// ── Redis Pub/Sub 实现 ──

// RedisDispatcher 广播发往 broadcast 频道，私信发往 prefix+role:id
type RedisDispatcher struct {
	pub       Publisher
	broadcast string
	prefix    string
	logger    *zap.Logger
}

// NewRedisDispatcher 创建基于 Redis 的分发器
func NewRedisDispatcher(pub Publisher, cfg config.RealtimeConfig, logger *zap.Logger) *RedisDispatcher {
	return &RedisDispatcher{
		pub:       pub,
		broadcast: cfg.BroadcastChannel,
		prefix:    cfg.PrincipalPrefix,
		logger:    logger,
	}
}

func (d *RedisDispatcher) NotifyBroadcast(ctx context.Context, event Event, payload any) error {
	return d.publish(ctx, d.broadcast, Envelope{Event: event, Payload: payload, SentAt: time.Now()})
}

func (d *RedisDispatcher) NotifyPrincipal(ctx context.Context, to Recipient, event Event, payload any) error {
	return d.publish(ctx, d.prefix+to.channelKey(), Envelope{
		Event:      event,
		Target:     to.ID,
		TargetRole: to.Role,
		Payload:    payload,
		SentAt:     time.Now(),
	})
}

func (d *RedisDispatcher) publish(ctx context.Context, channel string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("序列化通知失败: %w", err)
	}
	receivers, err := d.pub.Publish(ctx, channel, body)
	if err != nil {
		return fmt.Errorf("发布通知失败: %w", err)
	}
	d.logger.Debug("通知已发布",
		zap.String("channel", channel),
		zap.String("event", string(env.Event)),
		zap.Int64("receivers", receivers),
	)
	return nil
}

// ── 降级实现 ──

// LogDispatcher Redis 不可用时仅记录日志
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher 创建日志分发器
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) NotifyBroadcast(_ context.Context, event Event, _ any) error {
	d.logger.Info("实时通道未启用，广播已丢弃", zap.String("event", string(event)))
	return nil
}

func (d *LogDispatcher) NotifyPrincipal(_ context.Context, to Recipient, event Event, _ any) error {
	d.logger.Info("实时通道未启用，私信已丢弃",
		zap.String("event", string(event)),
		zap.String("principal_role", to.Role),
		zap.String("principal_id", to.ID),
	)
	return nil
}

// ── 提交后投递 ──

type pending struct {
	target  *Recipient
	event   Event
	payload any
}

// Batch 事务内收集通知，提交成功后再 Flush，回滚则直接丢弃
type Batch struct {
	items []pending
}

// Broadcast 追加一条广播
func (b *Batch) Broadcast(event Event, payload any) {
	b.items = append(b.items, pending{event: event, payload: payload})
}

// Principal 追加一条私信
func (b *Batch) Principal(to Recipient, event Event, payload any) {
	b.items = append(b.items, pending{target: &to, event: event, payload: payload})
}

// Len 已收集条数
func (b *Batch) Len() int { return len(b.items) }

// Flush 逐条投递；失败只记录日志与指标，不影响已提交的业务结果
func Flush(ctx context.Context, d Dispatcher, b *Batch, logger *zap.Logger) {
	if d == nil || b == nil {
		return
	}
	for _, it := range b.items {
		var err error
		target := ""
		if it.target == nil {
			err = d.NotifyBroadcast(ctx, it.event, it.payload)
		} else {
			target = it.target.channelKey()
			err = d.NotifyPrincipal(ctx, *it.target, it.event, it.payload)
		}
		metrics.ObserveNotification(string(it.event), err)
		if err != nil {
			logger.Warn("通知投递失败",
				zap.String("event", string(it.event)),
				zap.String("target", target),
				zap.Error(err),
			)
		}
	}
	b.items = nil
}
